package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/hyperifyio/jobcrawler/internal/job"
)

// CSVWriter writes a header row followed by one row per result.
type CSVWriter struct {
	Path string
}

func (w CSVWriter) Name() string { return "csv" }

func (w CSVWriter) Write(run Run) error {
	if err := ensureParent(w.Path); err != nil {
		return err
	}
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.Path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(job.CSVHeader); err != nil {
		f.Close()
		return err
	}
	for _, r := range run.Results {
		if err := cw.Write(r.CSVRecord()); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
