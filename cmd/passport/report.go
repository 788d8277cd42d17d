package passport

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// renderReport prints the stage trace of one run as a table followed by a
// summary line.
func renderReport(w io.Writer, r VerifyReport) error {
	res := r.Result
	fmt.Fprintf(w, "\n%s  run %s\n", r.Name, res.RunID)

	table := tablewriter.NewTable(w)
	table.Header([]string{"Stage", "Result", "Duration", "Error"})

	var rows [][]string
	for _, st := range res.Trace {
		status := "ok"
		if !st.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{
			st.Stage.String(),
			status,
			st.Duration.Round(time.Microsecond).String(),
			st.Error,
		})
	}
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to render trace: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render trace: %w", err)
	}

	fmt.Fprintf(w, "%s\n", reportStatus(r))
	if r.Verified {
		fmt.Fprintf(w, "  signature:     %s\n", res.SignatureAlgorithm.Name)
		fmt.Fprintf(w, "  public key:    %s\n", res.PublicKeyRange)
		fmt.Fprintf(w, "  embedded hash: %s\n", res.EmbeddedHash)
		if res.DataGroup > 0 {
			fmt.Fprintf(w, "  data group:    DG%d\n", res.DataGroup)
		}
	}
	if r.InputsError != "" {
		fmt.Fprintf(w, "  inputs:        %s\n", r.InputsError)
	}
	return nil
}
