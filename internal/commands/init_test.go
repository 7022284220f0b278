package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuentas-dev/cuentas/internal/config"
)

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	cmd := newInitCommand()
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	path := filepath.Join(dir, "rules.yml")
	_, err := os.Stat(path)
	require.NoError(t, err)

	// The starter file must compile cleanly.
	cfg, err := config.Load(path)
	require.NoError(t, err)

	bank, err := cfg.Bank("hsbc")
	require.NoError(t, err)
	assert.Equal(t, "xml", bank.Type)
	assert.Equal(t, "heuristic", bank.KindStrategy)

	bank, err = cfg.Bank("santander_likeu")
	require.NoError(t, err)
	assert.Equal(t, "tabular", bank.Type)

	name, day := cfg.Account("hsbc_cc", "x")
	assert.Equal(t, "Liabilities:CC:HSBC", name)
	assert.Equal(t, 15, day)

	assert.NotEmpty(t, cfg.Rules)
	assert.Equal(t, "cc:hsbc", cfg.ResolveCanonicalAccount("hsbc", ""))
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yml"), []byte("x"), 0o644))

	cmd := newInitCommand()
	cmd.SetArgs([]string{dir})
	assert.Error(t, cmd.Execute())
}
