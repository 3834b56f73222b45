package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validSG = `[{"time":"T1","nodes":[{"id":"boy","attributes":[]},{"id":"park","attributes":["sunny"]}],"edges":[["boy","in","park"]]}]`

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func validCSV() string {
	return "id,input,scenegraph,is_reasonable,is_annotated\n" +
		"r1,a boy in a park,\"" + strings.ReplaceAll(validSG, `"`, `""`) + "\",true,true\n" +
		"r2,an empty row,,false,false\n"
}

func TestLoadCSV(t *testing.T) {
	rows, err := LoadCSV(writeCSVFile(t, validCSV()))
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].ID != "r1" || !rows[0].IsReasonable || !rows[0].IsAnnotated {
		t.Errorf("rows[0] = %+v, want r1/true/true", rows[0])
	}
	if rows[0].Scenegraph != validSG {
		t.Errorf("rows[0].Scenegraph = %q, want original JSON", rows[0].Scenegraph)
	}
	if rows[1].Scenegraph != "" || rows[1].IsReasonable || rows[1].IsAnnotated {
		t.Errorf("rows[1] = %+v, want empty/false/false", rows[1])
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "empty file",
			content: "",
			wantMsg: "CSV file is empty",
		},
		{
			name:    "wrong header",
			content: "id,text,scenegraph,is_reasonable,is_annotated\n",
			wantMsg: "invalid CSV header",
		},
		{
			name:    "missing column",
			content: "id,input,scenegraph,is_reasonable,is_annotated\nr1,text,,true\n",
			wantMsg: "expected 5 columns",
		},
		{
			name:    "bad boolean",
			content: "id,input,scenegraph,is_reasonable,is_annotated\nr1,text,,yes,true\n",
			wantMsg: "is_reasonable must be true or false",
		},
		{
			name:    "scenegraph not JSON",
			content: "id,input,scenegraph,is_reasonable,is_annotated\nr1,text,not json,true,true\n",
			wantMsg: "scenegraph invalid",
		},
		{
			name:    "scenegraph fails validation",
			content: "id,input,scenegraph,is_reasonable,is_annotated\nr1,text,\"[{\"\"nodes\"\":[],\"\"edges\"\":[]}]\",true,true\n",
			wantMsg: "missing time field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(writeCSVFile(t, tt.content))
			if err == nil {
				t.Fatal("LoadCSV() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadCSV_NotFound(t *testing.T) {
	_, err := LoadCSV("/nonexistent/data.csv")
	if err == nil {
		t.Fatal("LoadCSV() expected error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want not-found", err)
	}
}

func TestSaveCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	rows := []Row{
		{ID: "r1", Input: "a boy, a dog", Scenegraph: validSG, IsReasonable: true, IsAnnotated: true},
		{ID: "r2", Input: "plain", Scenegraph: "", IsReasonable: false, IsAnnotated: false},
	}

	backupPath, err := SaveCSV(path, rows, true)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	if backupPath != "" {
		t.Errorf("backupPath = %q, want none for a new file", backupPath)
	}

	loaded, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if len(loaded) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(loaded), len(rows))
	}
	for i := range rows {
		if loaded[i] != rows[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, loaded[i], rows[i])
		}
	}
}

func TestSaveCSV_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	rows := []Row{{ID: "r1", Input: "text"}}

	if _, err := SaveCSV(path, rows, true); err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}

	rows[0].Input = "changed"
	backupPath, err := SaveCSV(path, rows, true)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	if backupPath == "" {
		t.Fatal("backupPath empty, want a backup of the existing file")
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Errorf("backup file missing: %v", err)
	}

	backup, err := LoadCSV(backupPath)
	if err != nil {
		t.Fatalf("LoadCSV(backup) error = %v", err)
	}
	if backup[0].Input != "text" {
		t.Errorf("backup Input = %q, want the pre-save value", backup[0].Input)
	}
}

func TestSaveCSV_NoBackupWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	rows := []Row{{ID: "r1"}}

	if _, err := SaveCSV(path, rows, false); err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	backupPath, err := SaveCSV(path, rows, false)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	if backupPath != "" {
		t.Errorf("backupPath = %q, want none with backups disabled", backupPath)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}
