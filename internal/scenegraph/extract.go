package scenegraph

// FlattenEdges extracts relation triples from a frame sequence, in frame
// order then edge order. Frames without a list-valued "edges" field
// contribute nothing; edge entries that are not 3-element lists are
// skipped. Time labels and node attributes are ignored.
func FlattenEdges(frames []any) []Triple {
	var triples []Triple

	for _, rawFrame := range frames {
		frame, ok := rawFrame.(map[string]any)
		if !ok {
			continue
		}

		edges, ok := frame["edges"].([]any)
		if !ok {
			continue
		}

		for _, rawEdge := range edges {
			edge, ok := rawEdge.([]any)
			if !ok || len(edge) != 3 {
				continue
			}
			triples = append(triples, NewTriple(edge[0], edge[1], edge[2]))
		}
	}

	return triples
}

// ExtractAll flattens each item's frame sequence into its triple list.
func ExtractAll(frameSeqs [][]any) [][]Triple {
	all := make([][]Triple, len(frameSeqs))
	for i, frames := range frameSeqs {
		all[i] = FlattenEdges(frames)
	}
	return all
}

// SetOf collapses a triple list into a value set.
func SetOf(triples []Triple) map[Triple]struct{} {
	set := make(map[Triple]struct{}, len(triples))
	for _, t := range triples {
		set[t] = struct{}{}
	}
	return set
}
