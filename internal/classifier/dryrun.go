package classifier

import (
	"context"
	"path/filepath"
)

// DryRun suggests deterministic destinations under the unsorted directory
// without touching the network. Used when classifier.dry_run is set.
type DryRun struct {
	UnsortedDir string
}

// Classify places every entry under the unsorted directory with full
// confidence.
func (d DryRun) Classify(_ context.Context, req Request) (Response, error) {
	unsorted := d.UnsortedDir
	if unsorted == "" {
		unsorted = "Unsorted"
	}
	resp := Response{Results: make([]Result, 0, len(req.Entries))}
	for _, entry := range req.Entries {
		resp.Results = append(resp.Results, Result{
			OriginalPath:  entry.Path,
			SuggestedPath: filepath.Join(unsorted, filepath.Base(entry.Path)),
			Confidence:    100,
		})
	}
	return resp, nil
}
