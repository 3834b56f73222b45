package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// LoadCSV reads and validates an annotation CSV file. The header must
// match Headers exactly; every row needs the full column count, a
// JSON-valid and structurally valid scenegraph field (empty means no
// frames), and literal true/false boolean columns.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundError(fmt.Sprintf("file %s", path))
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "opening CSV file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // column counts checked per row below

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.ValidationError("CSV file is empty")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "reading CSV header", err)
	}
	if !headerValid(header) {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("invalid CSV header: expected %v, got %v", Headers, header))
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation,
				fmt.Sprintf("reading CSV line %d", line), err)
		}
		if len(record) != len(Headers) {
			return nil, apperrors.ValidationError(
				fmt.Sprintf("line %d: expected %d columns, got %d", line, len(Headers), len(record)))
		}

		row, err := parseRecord(record, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRecord(record []string, line int) (Row, error) {
	sg := record[2]
	if sg != "" {
		if err := scenegraph.ValidateDocument([]byte(sg)); err != nil {
			return Row{}, apperrors.ValidationError(
				fmt.Sprintf("line %d: scenegraph invalid: %v", line, err))
		}
	}

	reasonable, err := parseBool(record[3])
	if err != nil {
		return Row{}, apperrors.ValidationError(
			fmt.Sprintf("line %d: is_reasonable must be true or false", line))
	}
	annotated, err := parseBool(record[4])
	if err != nil {
		return Row{}, apperrors.ValidationError(
			fmt.Sprintf("line %d: is_annotated must be true or false", line))
	}

	return Row{
		ID:           record[0],
		Input:        record[1],
		Scenegraph:   sg,
		IsReasonable: reasonable,
		IsAnnotated:  annotated,
	}, nil
}

func headerValid(header []string) bool {
	if len(header) != len(Headers) {
		return false
	}
	for i, h := range header {
		if h != Headers[i] {
			return false
		}
	}
	return true
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean literal: %q", s)
}

// SaveCSV writes rows back to path. When backup is enabled the current
// file is copied aside first and restored if the write fails.
func SaveCSV(path string, rows []Row, backup bool) (backupPath string, err error) {
	if backup {
		if _, statErr := os.Stat(path); statErr == nil {
			backupPath = fmt.Sprintf("%s.backup_%s", path, time.Now().Format("20060102_150405"))
			if err := copyFile(path, backupPath); err != nil {
				return "", apperrors.Wrap(apperrors.CodeStorageError, "creating backup", err)
			}
		}
	}

	if err := writeCSV(path, rows); err != nil {
		if backupPath != "" {
			if restoreErr := copyFile(backupPath, path); restoreErr != nil {
				return backupPath, apperrors.Wrap(apperrors.CodeStorageError,
					"write failed and backup restore failed", restoreErr)
			}
		}
		return backupPath, apperrors.Wrap(apperrors.CodeStorageError, "writing CSV file", err)
	}

	return backupPath, nil
}

func writeCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Headers); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.Input,
			row.Scenegraph,
			formatBool(row.IsReasonable),
			formatBool(row.IsAnnotated),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
