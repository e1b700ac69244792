package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/profile"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank nonprofit profiles from a file",
	Long:  "Loads profiles from a JSON, YAML, CSV or XLSX file, scores them, and prints the ranking.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		profilesPath, _ := cmd.Flags().GetString("profiles")
		contextPath, _ := cmd.Flags().GetString("context")
		top, _ := cmd.Flags().GetInt("top")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		explainEIN, _ := cmd.Flags().GetString("explain")
		save, _ := cmd.Flags().GetBool("save")

		if top < 0 || minScore < 0 || minScore > 1 {
			return eris.New("rank: --top must be >= 0 and --min-score between 0 and 1")
		}

		raws, err := profile.Load(ctx, profilesPath)
		if err != nil {
			return err
		}
		pctx, err := loadPartnershipContext(contextPath)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, "rank", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Rank(ctx, raws, ranking.Options{Context: pctx})
		if err != nil {
			return eris.Wrap(err, "rank")
		}

		rep := report{ConfigHash: res.ConfigHash, Candidates: res.Candidates, Excluded: res.Excluded}
		if top > 0 || minScore > 0 {
			rep.Candidates = ranking.TopPartners(res, top, minScore)
		}

		if save {
			id, err := saveRun(cmd, res)
			if err != nil {
				return err
			}
			rep.RunID = id
		}

		out, closeOut, err := openOutput(outPath)
		if err != nil {
			return err
		}
		if err := writeReport(out, rep, format); err != nil {
			_ = closeOut()
			return err
		}
		if err := closeOut(); err != nil {
			return eris.Wrap(err, "close output")
		}

		if explainEIN != "" {
			return explainCandidate(os.Stdout, res, explainEIN)
		}
		return nil
	},
}

// loadPartnershipContext reads the sponsor context, or returns the zero
// context when path is empty.
func loadPartnershipContext(path string) (roi.PartnershipContext, error) {
	if path == "" {
		return roi.PartnershipContext{}, nil
	}
	return profile.LoadContext(path)
}

// saveRun persists the full ranking and returns the new run ID.
func saveRun(cmd *cobra.Command, res *ranking.Result) (string, error) {
	ctx := cmd.Context()
	if err := cfg.Validate("runs"); err != nil {
		return "", err
	}
	st, err := initStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.SaveRun(ctx, model.Run{
		ConfigHash: res.ConfigHash,
		Candidates: res.Candidates,
		Excluded:   res.Excluded,
	})
	if err != nil {
		return "", eris.Wrap(err, "save run")
	}
	zap.L().Info("run saved", zap.String("run_id", run.ID), zap.Int("candidates", run.CandidateCount))
	return run.ID, nil
}

func init() {
	rankCmd.Flags().String("profiles", "", "profiles file (.json, .yaml, .csv, .xlsx)")
	rankCmd.Flags().String("context", "", "partnership context file (.json or .yaml)")
	rankCmd.Flags().Int("top", 0, "show only the top N candidates (0 for all)")
	rankCmd.Flags().Float64("min-score", 0, "hide candidates with a composite below this score")
	rankCmd.Flags().String("format", formatTable, "output format: table, csv or json")
	rankCmd.Flags().String("output", "", "write the ranking to this file instead of stdout")
	rankCmd.Flags().String("explain", "", "print a detailed explanation for this EIN")
	rankCmd.Flags().Bool("save", false, "persist the run to the configured store")
	_ = rankCmd.MarkFlagRequired("profiles")
	rootCmd.AddCommand(rankCmd)
}
