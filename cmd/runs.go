package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved ranking runs",
	Long:  "Commands for listing, viewing, summarizing and deleting saved ranking runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hash, _ := cmd.Flags().GetString("config-hash")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{ConfigHash: hash, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		format, _ := cmd.Flags().GetString("format")
		if format == formatJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		return writeReport(os.Stdout, report{
			RunID:      run.ID,
			ConfigHash: run.ConfigHash,
			Candidates: run.Candidates,
			Excluded:   run.Excluded,
		}, format)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over saved runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hash, _ := cmd.Flags().GetString("config-hash")
		runs, err := st.ListRuns(ctx, store.RunFilter{ConfigHash: hash, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted run %s.\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("config-hash", "", "only runs made with this settings hash")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("format", formatTable, "output format: table, csv or json")

	runsStatsCmd.Flags().String("config-hash", "", "only runs made with this settings hash")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total         int
	Candidates    int
	Excluded      int
	Configs       int
	AvgCandidates float64
	ExclusionRate float64
}

// computeRunStats computes aggregate statistics from a list of run summaries.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	hashes := make(map[string]bool)
	for _, r := range runs {
		s.Candidates += r.CandidateCount
		s.Excluded += r.ExcludedCount
		hashes[r.ConfigHash] = true
	}
	s.Configs = len(hashes)

	if s.Total > 0 {
		s.AvgCandidates = float64(s.Candidates) / float64(s.Total)
	}
	if seen := s.Candidates + s.Excluded; seen > 0 {
		s.ExclusionRate = float64(s.Excluded) / float64(seen)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCONFIG\tCANDIDATES\tEXCLUDED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t----------\t--------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			truncateID(r.ConfigHash),
			r.CandidateCount,
			r.ExcludedCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Distinct configs:\t%d\n", s.Configs)
	_, _ = fmt.Fprintf(w, "Candidates ranked:\t%d\n", s.Candidates)
	_, _ = fmt.Fprintf(w, "Profiles excluded:\t%d\n", s.Excluded)
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Avg candidates:\t%.1f\n", s.AvgCandidates)
		_, _ = fmt.Fprintf(w, "Exclusion rate:\t%.1f%%\n", s.ExclusionRate*100)
	}
	_ = w.Flush()
}
