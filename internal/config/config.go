// Package config loads rules.yml: per-bank settings, the classification
// rule cascade, merchant aliases, and the canonical account catalog. The
// result is an immutable snapshot for one pipeline run; regexes are compiled
// once at load time and never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownBank is returned when a bank id has no entry under banks:.
var ErrUnknownBank = errors.New("unknown bank id")

// defaultClosingDay treats unconfigured accounts as cutting at end of month.
const defaultClosingDay = 31

// File mirrors the raw rules.yml document.
type File struct {
	Defaults          DefaultsConfig              `yaml:"defaults"`
	Banks             map[string]BankConfig       `yaml:"banks"`
	Rules             []RuleConfig                `yaml:"rules"`
	MerchantAliases   []AliasConfig               `yaml:"merchant_aliases"`
	CanonicalAccounts map[string]CanonicalAccount `yaml:"canonical_accounts"`
}

// DefaultsConfig holds run-wide fallbacks.
type DefaultsConfig struct {
	Currency        string                `yaml:"currency"`
	FallbackExpense string                `yaml:"fallback_expense"`
	Accounts        map[string]AccountRef `yaml:"accounts"`
}

// AccountRef names a ledger account plus its statement closing day. The old
// config format used a bare string; both forms are accepted.
type AccountRef struct {
	Name       string `yaml:"name"`
	ClosingDay int    `yaml:"closing_day"`
}

// UnmarshalYAML accepts either "Liabilities:CC:HSBC" or
// {name: ..., closing_day: ...}.
func (a *AccountRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Name = value.Value
		a.ClosingDay = 0
		return nil
	}
	type plain AccountRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = AccountRef(p)
	return nil
}

// BankConfig declares how one bank's statements are read and classified.
type BankConfig struct {
	Type            string `yaml:"type"` // "xml", "tabular", "csv"
	AccountKey      string `yaml:"account_key"`
	PaymentAssetKey string `yaml:"payment_asset_key"`
	CardTag         string `yaml:"card_tag"`
	FallbackName    string `yaml:"fallback_name"`
	FallbackAsset   string `yaml:"fallback_asset"`
	KindStrategy    string `yaml:"kind_strategy"` // "heuristic" or "sign" (default)
}

// RuleConfig is one cascade entry as written in YAML.
type RuleConfig struct {
	Name     string   `yaml:"name"`
	AnyRegex []string `yaml:"any_regex"`
	Set      struct {
		Expense string   `yaml:"expense"`
		Tags    []string `yaml:"tags"`
	} `yaml:"set"`
}

// AliasConfig is one merchant alias as written in YAML.
type AliasConfig struct {
	Canon    string   `yaml:"canon"`
	AnyRegex []string `yaml:"any_regex"`
}

// CanonicalAccount describes one logical account merged across sources.
type CanonicalAccount struct {
	DisplayName string   `yaml:"display_name"`
	Type        string   `yaml:"type"`
	BankIDs     []string `yaml:"bank_ids"`
	AccountIDs  []string `yaml:"account_ids"`
	ClosingDay  int      `yaml:"closing_day"`
	Currency    string   `yaml:"currency"`
}

// Rule is a compiled cascade entry. Declaration order is significant: the
// first rule whose ANY regex matches wins.
type Rule struct {
	Name    string
	Regexes []*regexp.Regexp
	Expense string
	Tags    []string
}

// Alias is a compiled merchant alias.
type Alias struct {
	Canon   string
	Regexes []*regexp.Regexp
}

// Config is the compiled, immutable run configuration.
type Config struct {
	Currency          string
	FallbackExpense   string
	Accounts          map[string]AccountRef
	Banks             map[string]BankConfig
	Rules             []Rule
	MerchantAliases   []Alias
	CanonicalAccounts map[string]CanonicalAccount
}

// Load reads and compiles a rules.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return Compile(f)
}

// Compile turns a raw File into an immutable Config, compiling every regex.
func Compile(f File) (*Config, error) {
	cfg := &Config{
		Currency:          f.Defaults.Currency,
		FallbackExpense:   f.Defaults.FallbackExpense,
		Accounts:          f.Defaults.Accounts,
		Banks:             f.Banks,
		CanonicalAccounts: f.CanonicalAccounts,
	}
	if cfg.Currency == "" {
		cfg.Currency = "MXN"
	}
	if cfg.FallbackExpense == "" {
		cfg.FallbackExpense = "Expenses:Other:Uncategorized"
	}
	if cfg.Accounts == nil {
		cfg.Accounts = map[string]AccountRef{}
	}
	if cfg.Banks == nil {
		cfg.Banks = map[string]BankConfig{}
	}
	if cfg.CanonicalAccounts == nil {
		cfg.CanonicalAccounts = map[string]CanonicalAccount{}
	}

	for _, rc := range f.Rules {
		rule := Rule{
			Name:    rc.Name,
			Expense: rc.Set.Expense,
			Tags:    rc.Set.Tags,
		}
		if rule.Name == "" {
			rule.Name = "unnamed"
		}
		for _, pattern := range rc.AnyRegex {
			rx, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compiling regex %q: %w", rule.Name, pattern, err)
			}
			rule.Regexes = append(rule.Regexes, rx)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	for _, ac := range f.MerchantAliases {
		alias := Alias{Canon: strings.TrimSpace(ac.Canon)}
		for _, pattern := range ac.AnyRegex {
			rx, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("alias %q: compiling regex %q: %w", alias.Canon, pattern, err)
			}
			alias.Regexes = append(alias.Regexes, rx)
		}
		cfg.MerchantAliases = append(cfg.MerchantAliases, alias)
	}

	return cfg, nil
}

// Bank returns the configuration for a bank id, or ErrUnknownBank.
func (c *Config) Bank(id string) (BankConfig, error) {
	bank, ok := c.Banks[id]
	if !ok {
		return BankConfig{}, fmt.Errorf("%w: %q", ErrUnknownBank, id)
	}
	return bank, nil
}

// Account resolves an account key from defaults.accounts, falling back to
// the given name with an end-of-month closing day.
func (c *Config) Account(key, fallbackName string) (name string, closingDay int) {
	ref, ok := c.Accounts[key]
	if !ok || ref.Name == "" {
		return fallbackName, defaultClosingDay
	}
	day := ref.ClosingDay
	if day == 0 {
		day = defaultClosingDay
	}
	return ref.Name, day
}

// ResolveCanonicalAccount maps a (bank id, account label) pair onto the
// canonical account catalog. Unmapped accounts collapse onto a per-bank
// synthetic id so the same bank always merges to one account.
func (c *Config) ResolveCanonicalAccount(bankID, accountID string) string {
	bankNorm := strings.ToLower(strings.TrimSpace(bankID))
	accountNorm := strings.ToLower(strings.TrimSpace(accountID))

	// Sorted iteration keeps resolution deterministic when entries overlap.
	ids := make([]string, 0, len(c.CanonicalAccounts))
	for id := range c.CanonicalAccounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, canonicalID := range ids {
		entry := c.CanonicalAccounts[canonicalID]
		if !containsFold(entry.BankIDs, bankNorm) {
			continue
		}
		if len(entry.AccountIDs) == 0 || containsFold(entry.AccountIDs, accountNorm) {
			return canonicalID
		}
	}

	if bankNorm != "" {
		return "cc:" + bankNorm
	}
	return "cc:unknown"
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.ToLower(strings.TrimSpace(v)) == want {
			return true
		}
	}
	return false
}
