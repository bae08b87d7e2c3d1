package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONWriter writes results as an indented JSON array.
type JSONWriter struct {
	Path string
}

func (w JSONWriter) Name() string { return "json" }

func (w JSONWriter) Write(run Run) error {
	if err := ensureParent(w.Path); err != nil {
		return err
	}
	b, err := json.MarshalIndent(results(run), "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(w.Path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", w.Path, err)
	}
	return nil
}
