package reconcile

import (
	"time"

	"github.com/poiesic/clinicalner/storage"
)

// Status is the outcome of one artifact.
type Status string

const (
	// StatusApplied means the artifact was committed to the store.
	StatusApplied Status = "applied"

	// StatusAlreadyApplied means the ledger holds the same digest for the artifact.
	StatusAlreadyApplied Status = "already-applied"

	// StatusRejected means the artifact could not be decoded or validated.
	StatusRejected Status = "rejected"

	// StatusFailed means the store returned an error; the artifact was rolled back.
	StatusFailed Status = "failed"
)

// ArtifactResult describes what happened to one artifact.
type ArtifactResult struct {
	Name      string
	Digest    string
	Status    Status
	Legacy    bool
	Documents int
	Updated   int
	Unmatched []int64
	Err       error
}

// Report summarizes a reconciliation run.
type Report struct {
	Schema    *storage.SchemaReport
	Artifacts []ArtifactResult
	Elapsed   time.Duration
}

// Count returns the number of artifacts with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Status == s {
			n++
		}
	}
	return n
}

// Updated returns the number of notes updated across all artifacts.
func (r *Report) Updated() int {
	n := 0
	for _, a := range r.Artifacts {
		n += a.Updated
	}
	return n
}

// Unmatched returns the number of documents with no matching note.
func (r *Report) Unmatched() int {
	n := 0
	for _, a := range r.Artifacts {
		n += len(a.Unmatched)
	}
	return n
}

// Rejected returns the results of artifacts that were skipped as corrupt or invalid.
func (r *Report) Rejected() []ArtifactResult {
	var out []ArtifactResult
	for _, a := range r.Artifacts {
		if a.Status == StatusRejected {
			out = append(out, a)
		}
	}
	return out
}
