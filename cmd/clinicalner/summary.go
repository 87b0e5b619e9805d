package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/corpus"
	"github.com/poiesic/clinicalner/ingest"
	"github.com/poiesic/clinicalner/reconcile"
)

const notePreviewLength = 200

var (
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	boldRed    = color.New(color.FgRed, color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
)

// count renders n highlighted when it signals trouble.
func count(n int, bad func(a ...interface{}) string) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return bad(n)
}

func printIngestSummary(w io.Writer, r *ingest.Report) {
	fmt.Fprintln(w, boldCyan("Ingestion"))
	fmt.Fprintf(w, "  rows read:   %d\n", r.Rows)
	fmt.Fprintf(w, "  inserted:    %s\n", boldGreen(r.Inserted))
	fmt.Fprintf(w, "  already had: %d\n", r.Skipped())
	fmt.Fprintf(w, "  chunks:      %d\n", r.Chunks)
	fmt.Fprintf(w, "  elapsed:     %s\n", r.Elapsed.Round(time.Millisecond))
}

func printExtractSummary(w io.Writer, r *corpus.Report) {
	fmt.Fprintln(w, boldCyan("Extraction"))
	fmt.Fprintf(w, "  notes:               %d/%d\n", r.Processed(), r.Total)
	fmt.Fprintf(w, "  written:             %s\n", boldGreen(r.Succeeded()))
	fmt.Fprintf(w, "  skipped:             %s\n", count(len(r.Failures()), boldRed))
	fmt.Fprintf(w, "  extraction failures: %s\n", count(int(r.ExtractionFailures), boldYellow))
	fmt.Fprintf(w, "  artifacts:           %d\n", len(r.Artifacts))
	fmt.Fprintf(w, "  elapsed:             %s\n", r.Elapsed.Round(time.Millisecond))
	for _, f := range r.Failures() {
		fmt.Fprintf(w, "    %s note %d: %v\n", boldRed("!"), f.NoteID, f.Err)
	}
}

func printReconcileSummary(w io.Writer, r *reconcile.Report) {
	fmt.Fprintln(w, boldCyan("Reconciliation"))
	if r.Schema != nil {
		fmt.Fprintf(w, "  columns ensured:  %d (warnings: %s)\n", len(r.Schema.Ensured), count(len(r.Schema.Warnings), boldYellow))
	}
	fmt.Fprintf(w, "  applied:          %s\n", boldGreen(r.Count(reconcile.StatusApplied)))
	fmt.Fprintf(w, "  already applied:  %d\n", r.Count(reconcile.StatusAlreadyApplied))
	fmt.Fprintf(w, "  rejected:         %s\n", count(r.Count(reconcile.StatusRejected), boldRed))
	fmt.Fprintf(w, "  notes updated:    %d\n", r.Updated())
	fmt.Fprintf(w, "  unmatched ids:    %s\n", count(r.Unmatched(), boldYellow))
	fmt.Fprintf(w, "  elapsed:          %s\n", r.Elapsed.Round(time.Millisecond))
	for _, a := range r.Artifacts {
		if a.Err != nil {
			fmt.Fprintf(w, "    %s %s: %v\n", boldRed("!"), a.Name, a.Err)
		}
	}
}

// printNotes prints notes with their metadata. A non-empty label limits the
// entity listing to that label.
func printNotes(w io.Writer, notes []*core.NoteMetadata, label string) {
	if len(notes) == 0 {
		fmt.Fprintln(w, faint("no notes found"))
		return
	}
	labels := core.Labels
	if label != "" {
		labels = []string{label}
	}

	for _, n := range notes {
		fmt.Fprintf(w, "%s %d\n", boldCyan("Note"), n.ID)
		fmt.Fprintf(w, "  %s\n", faint(preview(n.Note)))
		fmt.Fprintf(w, "  text_length: %s  total_entities: %s  semantic_density: %s\n",
			intOrDash(n.TextLength), intOrDash(n.TotalEntities), floatOrDash(n.SemanticDensity))
		for _, l := range labels {
			spans := n.Entities.Get(l)
			if len(spans) == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", boldGreen(l), strings.Join(spans, ", "))
		}
	}
}

func preview(note string) string {
	note = strings.Join(strings.Fields(note), " ")
	runes := []rune(note)
	if len(runes) <= notePreviewLength {
		return note
	}
	return string(runes[:notePreviewLength]) + "..."
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
