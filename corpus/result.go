package corpus

import (
	"time"

	"github.com/poiesic/clinicalner/artifact"
)

// Result is the outcome of processing one note.
type Result struct {
	NoteID int64
	// Err is nil when the note was transformed and buffered for writing.
	Err error
}

// OK reports whether the note was processed successfully.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report summarizes a processing run.
type Report struct {
	// StartAfter is the id the run resumed after, or math.MinInt64 for a full run.
	StartAfter int64

	// Total is the number of notes the source reported before the run.
	Total int

	// Results holds one entry per note visited, in corpus order.
	Results []Result

	// Artifacts lists the batch files written, in order.
	Artifacts []artifact.ArtifactInfo

	// ExtractionFailures counts notes whose extraction degraded to no entities.
	ExtractionFailures int64

	Elapsed time.Duration
}

// Processed returns the number of notes visited.
func (r *Report) Processed() int {
	return len(r.Results)
}

// Succeeded returns the number of notes written to artifacts.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failures returns the results of notes that could not be processed.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}
