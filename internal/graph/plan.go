package graph

import (
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/keystone/internal/ir"
)

// FormatPlan writes one line per future in execution order:
//
//	1  Price#PriceModel   deploy PriceModel()
//
// When statuses is non-nil a status column is added; futures missing from
// the map are shown as pending.
func FormatPlan(w io.Writer, order []*ir.Future, statuses map[ir.FutureRef]ir.Status) error {
	if _, err := fmt.Fprintf(w, "Plan (%d futures):\n", len(order)); err != nil {
		return err
	}

	numWidth := len(strconv.Itoa(len(order)))
	refWidth := 0
	for _, f := range order {
		refWidth = max(refWidth, len(f.Ref.String()))
	}

	for i, f := range order {
		line := fmt.Sprintf("%*d  ", numWidth, i+1)
		if statuses != nil {
			status, ok := statuses[f.Ref]
			if !ok {
				status = ir.StatusPending
			}
			line += fmt.Sprintf("%-9s  ", status)
		}
		line += fmt.Sprintf("%-*s  %s\n", refWidth, f.Ref.String(), f.Describe())
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
