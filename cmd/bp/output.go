package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/and161185/bloomplan/internal/convert"
	"github.com/and161185/bloomplan/internal/estimator"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/plandraft"
)

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printPlan(w io.Writer, p model.Plan) { printJSON(w, convert.ToWirePlan(p)) }

func printPlans(w io.Writer, ps []model.Plan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFREQUENCY\tSTART\tYEARS\tBUDGET")
	for _, p := range ps {
		s := p.Structure
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Status, s.Frequency, model.FormatDate(s.StartDate), s.Years, s.Budget.StringFixed(2))
	}
	_ = tw.Flush()
}

func printSlots(w io.Writer, slots []plandraft.Slot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tMESSAGE")
	for _, s := range slots {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Index, model.FormatDate(s.Date), s.Message)
	}
	_ = tw.Flush()
}

func printEstimate(w io.Writer, st plandraft.Estimate) {
	label := "plan"
	if s := st.Params.Structure; s != nil {
		label = fmt.Sprintf("%s, %dy from %s, %s per delivery",
			s.Frequency, s.Years, model.FormatDate(s.StartDate), s.Budget.StringFixed(2))
	}
	switch st.Phase {
	case estimator.PhaseSettled:
		fmt.Fprintf(w, "price %s (%s)\n", st.Result.Amount.StringFixed(2), label)
	case estimator.PhaseFailed:
		fmt.Fprintf(w, "price unavailable (%s): %v\n", label, st.Err)
	}
}

func printBreakdown(w io.Writer, q model.PriceQuote) {
	keys := make([]string, 0, len(q.Breakdown))
	for k := range q.Breakdown {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, q.Breakdown[k])
	}
}
