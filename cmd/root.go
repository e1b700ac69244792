package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/config"
)

var (
	cfg        *config.Config
	loader     *config.Loader
	configFile string
)

var rootCmd = &cobra.Command{
	Use:          "nonprofit-ranker",
	Short:        "Score and rank nonprofit partnership candidates",
	Long:         "Scores nonprofit profiles for mission alignment and partnership ROI, blends them with financial and capacity signals, and ranks the candidates with an explanation for each.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader = config.NewLoader()
		loader.SetConfigFile(configFile)

		c, err := loader.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
