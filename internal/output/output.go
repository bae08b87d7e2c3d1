// Package output writes the accepted listings of a run to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperifyio/jobcrawler/internal/job"
)

// Run is everything a sink needs to describe one crawl.
type Run struct {
	ID       string
	Finished time.Time
	Results  []job.Result
}

// Sink persists the results of a run.
type Sink interface {
	Write(run Run) error
	Name() string
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// results never returns nil so empty runs encode as [] rather than null.
func results(r Run) []job.Result {
	if r.Results == nil {
		return []job.Result{}
	}
	return r.Results
}
