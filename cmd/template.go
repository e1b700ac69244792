package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nonprofit-ranker/internal/profile"
)

var templateCmd = &cobra.Command{
	Use:   "template <file>",
	Short: "Write an empty profile import template (.xlsx or .csv)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := args[0]
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			return profile.WriteXLSXTemplate(path)
		case ".csv":
			return writeCSVTemplate(path)
		default:
			return eris.Errorf("template: unsupported extension %q (want .xlsx or .csv)", filepath.Ext(path))
		}
	},
}

func writeCSVTemplate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "template: create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(profile.Header()); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "template: write header")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "template: flush")
	}
	return eris.Wrap(f.Close(), "template: close")
}

func init() {
	rootCmd.AddCommand(templateCmd)
}
