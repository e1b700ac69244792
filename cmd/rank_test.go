package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/profile"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

const profilesJSON = `[
  {
    "ein": "11-1111111",
    "name": "Harbor Relief",
    "mission": "We provide disaster relief and emergency shelter for coastal families.",
    "categories": ["disaster_services"],
    "financials": {"revenue": 2500000, "expenses": 2000000, "program_expense_ratio": 0.8}
  },
  {
    "ein": "22-2222222",
    "name": "Valley Arts",
    "mission": "Community arts classes for all ages."
  },
  {
    "ein": "bogus",
    "name": "Broken"
  }
]`

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestFindProfile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(profilesJSON), 0o644))

	raws, err := profile.Load(context.Background(), path)
	require.NoError(t, err)

	p, err := findProfile(raws, "111111111")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Relief", p.Name)

	_, err = findProfile(raws, "33-3333333")
	assert.Error(t, err)

	_, err = findProfile(raws, "nope")
	assert.Error(t, err)
}

func TestRankCommand_EndToEnd(t *testing.T) {
	dir := chdirTemp(t)
	profilesPath := filepath.Join(dir, "profiles.json")
	outPath := filepath.Join(dir, "ranking.json")
	require.NoError(t, os.WriteFile(profilesPath, []byte(profilesJSON), 0o644))

	rootCmd.SetArgs([]string{"rank", "--profiles", profilesPath, "--format", "json", "--output", outPath, "--save"})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var rep report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Len(t, rep.Candidates, 2)
	assert.Equal(t, "11-1111111", rep.Candidates[0].EIN)
	assert.Equal(t, 1, rep.Candidates[0].Rank)
	require.Len(t, rep.Excluded, 1)
	assert.NotEmpty(t, rep.RunID)
	assert.NotEmpty(t, rep.ConfigHash)

	st, err := store.Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "ranker.db")})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.GetRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.CandidateCount)
	assert.Equal(t, 1, run.ExcludedCount)
}

func TestTemplateCommand(t *testing.T) {
	dir := chdirTemp(t)

	csvPath := filepath.Join(dir, "template.csv")
	rootCmd.SetArgs([]string{"template", csvPath})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ein")

	xlsxPath := filepath.Join(dir, "template.xlsx")
	rootCmd.SetArgs([]string{"template", xlsxPath})
	require.NoError(t, rootCmd.Execute())
	_, err = os.Stat(xlsxPath)
	assert.NoError(t, err)

	rootCmd.SetArgs([]string{"template", filepath.Join(dir, "template.txt")})
	assert.Error(t, rootCmd.Execute())
}
