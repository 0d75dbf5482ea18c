// Package report collects per-compilation optimization statistics and
// encodes them as JSON for the CLI's --stats output.
package report

import (
	"encoding/json"
	"io"
)

// Report summarizes what one compilation did to one program.
type Report struct {
	Source         string `json:"source"`
	NodesFolded    int    `json:"nodes_folded"`
	LetsElided     int    `json:"lets_elided"`
	BranchesPruned int    `json:"branches_pruned"`
	LoopsElided    int    `json:"loops_elided"`
	DeadStores     int    `json:"dead_stores_removed"`
	RegisterVars   int    `json:"register_vars"`
	StackVars      int    `json:"stack_vars"`
	AssemblyLines  int    `json:"assembly_lines"`
}

// WriteJSON writes a report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON reads a report written by WriteJSON.
func ReadJSON(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
