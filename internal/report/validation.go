package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/ginjaninja78/charge-reconciler/internal/reconcile"
)

// WriteInspections prints one table row per inspected source followed by
// the failure of every source that is not usable.
func WriteInspections(w io.Writer, field string, inspections []reconcile.Inspection) error {
	if _, err := fmt.Fprintf(w, "Identifier column: %s\n", field); err != nil {
		return err
	}

	table := tablewriter.NewTable(w)
	table.Header("Side", "Source", "Rows", "Identifiers", "Duplicates", "Empty", "Filtered", "Malformed", "Status")

	for _, in := range inspections {
		status := "ok"
		if in.Err != nil {
			status = "error"
		}

		err := table.Append(
			in.Side,
			label(in.Stats),
			strconv.Itoa(in.Stats.Rows),
			strconv.Itoa(in.Stats.Identifiers),
			strconv.Itoa(in.Stats.Duplicates()),
			strconv.Itoa(in.Stats.EmptyIdentifiers),
			strconv.Itoa(in.Stats.Filtered),
			strconv.Itoa(in.Stats.Malformed),
			status,
		)
		if err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	for _, in := range inspections {
		if in.Err == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %v\n", in.Side, in.Err); err != nil {
			return err
		}
	}

	return nil
}
