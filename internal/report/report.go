package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/yuya-takeyama/sync-s3/internal/metadata"
	"github.com/yuya-takeyama/sync-s3/pkg/executor"
	"github.com/yuya-takeyama/sync-s3/pkg/planner"
	"github.com/yuya-takeyama/sync-s3/pkg/s3client"
)

var classifications = []planner.Classification{
	planner.NewLocally,
	planner.Changed,
	planner.RemovedLocally,
	planner.Unchanged,
}

// PrintComparisons lists every key with its classification, followed by per
// classification totals.
func PrintComparisons(w io.Writer, plan *planner.Plan) {
	fmt.Fprintln(w, "Comparisons:")
	for _, r := range plan.Records() {
		fmt.Fprintf(w, "  %s : %s\n", r.Key(), r.Classification())
	}

	counts := plan.Counts()
	fmt.Fprintf(w, "Total: %d", plan.Len())
	for _, c := range classifications {
		fmt.Fprintf(w, ", %s: %d", c, counts[c])
	}
	fmt.Fprintln(w)
}

func PrintMetadata(w io.Writer, doc metadata.Document) error {
	data, err := json.MarshalIndent(doc, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	fmt.Fprintln(w, "Metadata:")
	fmt.Fprintf(w, "  %s\n", data)
	return nil
}

func PrintSuccess(w io.Writer) {
	fmt.Fprintln(w, "\nSuccess! All requests completed successfully.")
}

// PrintFailures dumps each failed record with its most recent error.
func PrintFailures(w io.Writer, failures []executor.Failure) {
	fmt.Fprintf(w, "\nSomething went wrong! %d request(s) failed.\n", len(failures))
	for _, f := range failures {
		fmt.Fprintln(w, "\n###########################")
		fmt.Fprintf(w, "Worker: %d\n", f.WorkerID)
		fmt.Fprintf(w, "Item: %s\n", f.Record)
		if local := f.Record.Local(); local != nil {
			fmt.Fprintf(w, "Local: %s (%d bytes)\n", local.Path, local.Size)
		}
		if code := s3client.ErrorCode(f.Err); code != "" {
			fmt.Fprintf(w, "Code: %s\n", code)
		}
		fmt.Fprintf(w, "Error: %v\n", f.Err)
	}
}
