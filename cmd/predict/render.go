package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/predict"
)

// renderPrediction prints the applied window and one table per phase, in
// counselling order.
func renderPrediction(w io.Writer, req predict.Request, pred *predict.Prediction) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n=== Rank %d | %s | %s ===\n", req.Rank, req.Category, req.Branch)
	fmt.Fprintf(w, "Rank window: %d to %d\n", pred.Window.Min, pred.Window.Max)

	for _, p := range college.Partitions() {
		rows := pred.Results[p]
		color.New(color.FgYellow).Fprintf(w, "\n%s (%d colleges)\n", p, len(rows))
		if len(rows) == 0 {
			fmt.Fprintln(w, "No colleges found")
			continue
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"#", "Institute", "Place", "Dist", "Type", "Fee", "Closing Rank"})
		for i, r := range rows {
			table.Append([]string{
				strconv.Itoa(i + 1),
				r.InstituteName,
				r.Place,
				r.DistCode,
				r.CollegeType,
				strconv.FormatInt(r.TuitionFee, 10),
				strconv.Itoa(r.ClosingRank),
			})
		}
		table.Render()
	}
}
