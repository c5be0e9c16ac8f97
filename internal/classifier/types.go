package classifier

import "context"

// Entry is one file submitted for classification.
type Entry struct {
	// Path is the absolute source path; only the filename is sent to the
	// model, but results are keyed by the full path.
	Path string
	// CustomInstructions append to the standing library instructions for
	// this entry only (priority re-classification).
	CustomInstructions string
	// Capabilities carries hints about the file (for example
	// "subtitle sidecar of <primary>") that help the model keep related
	// files together.
	Capabilities []string
}

// Request is a batch classification request.
type Request struct {
	Entries []Entry
}

// Result is the suggestion for one requested path.
type Result struct {
	OriginalPath  string
	SuggestedPath string
	// Confidence is 0-100.
	Confidence int
}

// Response holds the per-path results of a batch request. Paths absent from
// Results failed individually; the batch itself succeeded.
type Response struct {
	Results []Result
}

// ResultFor returns the result matching a requested path.
func (r Response) ResultFor(path string) (Result, bool) {
	for _, result := range r.Results {
		if result.OriginalPath == path {
			return result, true
		}
	}
	return Result{}, false
}

// Gateway classifies batches of files.
type Gateway interface {
	Classify(ctx context.Context, req Request) (Response, error)
}
