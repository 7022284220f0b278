package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `defaults:
  currency: MXN
  fallback_expense: Expenses:Other:Uncategorized
  accounts:
    hsbc_cc:
      name: Liabilities:CC:HSBC
      closing_day: 15
    main_checking: Assets:Bank:Checking

banks:
  hsbc:
    type: xml
    account_key: hsbc_cc
    payment_asset_key: main_checking
    card_tag: card:hsbc
    kind_strategy: heuristic

rules:
  - name: streaming
    any_regex: ["netflix", "spotify"]
    set:
      expense: Expenses:Entertainment:Streaming
      tags: [subscription]

merchant_aliases:
  - canon: oxxo
    any_regex: ["oxxo"]

canonical_accounts:
  cc:hsbc:
    display_name: HSBC 2Now
    type: credit_card
    bank_ids: [hsbc]
    closing_day: 15
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeRules(t, sampleRules))
	require.NoError(t, err)

	assert.Equal(t, "MXN", cfg.Currency)
	assert.Equal(t, "Expenses:Other:Uncategorized", cfg.FallbackExpense)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "streaming", cfg.Rules[0].Name)
	require.Len(t, cfg.Rules[0].Regexes, 2)
	assert.True(t, cfg.Rules[0].Regexes[0].MatchString("NETFLIX.COM")) // case folded
	require.Len(t, cfg.MerchantAliases, 1)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestCompile_Defaults(t *testing.T) {
	cfg, err := Compile(File{})
	require.NoError(t, err)
	assert.Equal(t, "MXN", cfg.Currency)
	assert.Equal(t, "Expenses:Other:Uncategorized", cfg.FallbackExpense)
	assert.NotNil(t, cfg.Accounts)
	assert.NotNil(t, cfg.Banks)
}

func TestCompile_BadRegex(t *testing.T) {
	_, err := Compile(File{Rules: []RuleConfig{{Name: "bad", AnyRegex: []string{"("}}}})
	assert.Error(t, err)
}

func TestBank(t *testing.T) {
	cfg, err := Load(writeRules(t, sampleRules))
	require.NoError(t, err)

	bank, err := cfg.Bank("hsbc")
	require.NoError(t, err)
	assert.Equal(t, "xml", bank.Type)
	assert.Equal(t, "heuristic", bank.KindStrategy)

	_, err = cfg.Bank("bbva")
	assert.ErrorIs(t, err, ErrUnknownBank)
}

func TestAccount(t *testing.T) {
	cfg, err := Load(writeRules(t, sampleRules))
	require.NoError(t, err)

	// Mapping form with closing day.
	name, day := cfg.Account("hsbc_cc", "fallback")
	assert.Equal(t, "Liabilities:CC:HSBC", name)
	assert.Equal(t, 15, day)

	// Scalar form falls back to end of month.
	name, day = cfg.Account("main_checking", "fallback")
	assert.Equal(t, "Assets:Bank:Checking", name)
	assert.Equal(t, 31, day)

	// Unknown key uses the fallback name.
	name, day = cfg.Account("nope", "Liabilities:CC:Fallback")
	assert.Equal(t, "Liabilities:CC:Fallback", name)
	assert.Equal(t, 31, day)
}

func TestResolveCanonicalAccount(t *testing.T) {
	cfg, err := Load(writeRules(t, sampleRules))
	require.NoError(t, err)

	// Catalog match by bank id (no account_ids restricts it).
	assert.Equal(t, "cc:hsbc", cfg.ResolveCanonicalAccount("hsbc", "4444111122223333"))
	assert.Equal(t, "cc:hsbc", cfg.ResolveCanonicalAccount("HSBC", ""))

	// Unmapped banks collapse to a synthetic per-bank id.
	assert.Equal(t, "cc:bbva", cfg.ResolveCanonicalAccount("bbva", "x"))
	assert.Equal(t, "cc:unknown", cfg.ResolveCanonicalAccount("", ""))
}
