package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

// report is the JSON export of a ranking.
type report struct {
	RunID      string                  `json:"run_id,omitempty"`
	ConfigHash string                  `json:"config_hash"`
	Candidates []model.RankedCandidate `json:"candidates"`
	Excluded   []model.Exclusion       `json:"excluded,omitempty"`
}

// factorColumns are the sub-score columns of table and CSV output.
var factorColumns = []string{
	model.FactorMission,
	model.FactorROI,
	model.FactorFinancialStability,
	model.FactorOrganizationalCapacity,
	model.FactorDataQuality,
}

// openOutput returns stdout when path is empty.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, f.Close, nil
}

// writeReport renders rep in the requested format.
func writeReport(w io.Writer, rep report, format string) error {
	switch format {
	case formatTable, "":
		formatRankingTable(w, rep.Candidates)
		if len(rep.Excluded) > 0 {
			_, _ = fmt.Fprintf(w, "\n%d profile(s) excluded:\n", len(rep.Excluded))
			for _, ex := range rep.Excluded {
				_, _ = fmt.Fprintf(w, "  %s %s: %s\n", ex.EIN, ex.Name, ex.Reason)
			}
		}
		return nil
	case formatCSV:
		return writeRankingCSV(w, rep.Candidates)
	case formatJSON:
		if rep.Candidates == nil {
			rep.Candidates = []model.RankedCandidate{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rep), "encode report")
	default:
		return eris.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

// formatRankingTable writes a tabular ranking to out.
func formatRankingTable(out io.Writer, cs []model.RankedCandidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tEIN\tNAME\tSCORE\tMISSION\tROI\tSTABILITY\tCAPACITY\tQUALITY\tFLAGS")
	_, _ = fmt.Fprintln(w, "----\t---\t----\t-----\t-------\t---\t---------\t--------\t-------\t-----")

	for _, c := range cs {
		name := c.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		flags := ""
		if c.Degraded {
			flags = "degraded"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.3f", c.Rank, c.EIN, name, c.Composite)
		for _, f := range factorColumns {
			_, _ = fmt.Fprintf(w, "\t%.2f", c.SubScore(f).Score)
		}
		_, _ = fmt.Fprintf(w, "\t%s\n", flags)
	}
	_ = w.Flush()
}

// writeRankingCSV writes one row per candidate with its sub-scores and
// rationale.
func writeRankingCSV(out io.Writer, cs []model.RankedCandidate) error {
	w := csv.NewWriter(out)
	header := append([]string{"rank", "ein", "name", "composite"}, factorColumns...)
	header = append(header, "degraded", "rationale")
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	for _, c := range cs {
		row := []string{
			strconv.Itoa(c.Rank),
			c.EIN,
			c.Name,
			strconv.FormatFloat(c.Composite, 'f', 4, 64),
		}
		for _, f := range factorColumns {
			row = append(row, strconv.FormatFloat(c.SubScore(f).Score, 'f', 4, 64))
		}
		reasons := make([]string, 0, len(c.Rationale))
		for _, r := range c.Rationale {
			reasons = append(reasons, r.Factor+": "+r.Detail)
		}
		row = append(row, strconv.FormatBool(c.Degraded), strings.Join(reasons, "; "))
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

// formatComparison writes a factor-by-factor comparison to out.
func formatComparison(out io.Writer, cmp model.Comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "FACTOR\t%s\t%s\tDELTA\tWEIGHTED\n", cmp.A, cmp.B)
	for _, f := range cmp.Factors {
		_, _ = fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%+.3f\t%+.3f\n", f.Factor, f.A, f.B, f.Delta, f.WeightedDelta)
	}
	_, _ = fmt.Fprintf(w, "composite\t\t\t%+.3f\t\n", cmp.Delta)
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%s\n", cmp.Summary)
}

// explainCandidate writes the explanation for ein, or an error when no
// ranked candidate has that EIN.
func explainCandidate(out io.Writer, res *ranking.Result, ein string) error {
	c, ok := res.Find(ein)
	if !ok {
		return eris.Errorf("no ranked candidate with ein %s", ein)
	}
	_, err := fmt.Fprintln(out, ranking.Explain(*c))
	return eris.Wrap(err, "write explanation")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
