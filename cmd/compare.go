package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/normalize"
	"github.com/sells-group/nonprofit-ranker/internal/profile"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two nonprofits factor by factor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		profilesPath, _ := cmd.Flags().GetString("profiles")
		contextPath, _ := cmd.Flags().GetString("context")
		einA, _ := cmd.Flags().GetString("a")
		einB, _ := cmd.Flags().GetString("b")
		format, _ := cmd.Flags().GetString("format")

		raws, err := profile.Load(ctx, profilesPath)
		if err != nil {
			return err
		}
		a, err := findProfile(raws, einA)
		if err != nil {
			return err
		}
		b, err := findProfile(raws, einB)
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

		cmp, err := env.Engine.CompareProfiles(ctx, a, b, ranking.Options{Context: pctx})
		if err != nil {
			return eris.Wrap(err, "compare")
		}

		if format == formatJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cmp)
		}
		formatComparison(os.Stdout, cmp)
		return nil
	},
}

// findProfile returns the first profile whose EIN matches ein in
// canonical form.
func findProfile(raws []model.RawProfile, ein string) (model.RawProfile, error) {
	want, err := normalize.CanonicalEIN(ein)
	if err != nil {
		return model.RawProfile{}, err
	}
	for _, r := range raws {
		if got, err := normalize.CanonicalEIN(r.EIN); err == nil && got == want {
			return r, nil
		}
	}
	return model.RawProfile{}, eris.Errorf("no profile with ein %s", want)
}

func init() {
	compareCmd.Flags().String("profiles", "", "profiles file (.json, .yaml, .csv, .xlsx)")
	compareCmd.Flags().String("context", "", "partnership context file (.json or .yaml)")
	compareCmd.Flags().String("a", "", "EIN of the first nonprofit")
	compareCmd.Flags().String("b", "", "EIN of the second nonprofit")
	compareCmd.Flags().String("format", formatTable, "output format: table or json")
	_ = compareCmd.MarkFlagRequired("profiles")
	_ = compareCmd.MarkFlagRequired("a")
	_ = compareCmd.MarkFlagRequired("b")
	rootCmd.AddCommand(compareCmd)
}
