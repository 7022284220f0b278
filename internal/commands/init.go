package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// starterRules is the rules.yml written by init: two Mexican banks and a
// handful of rules to grow from.
const starterRules = `defaults:
  currency: MXN
  fallback_expense: Expenses:Other:Uncategorized
  accounts:
    hsbc_cc:
      name: Liabilities:CC:HSBC
      closing_day: 15
    santander_cc:
      name: Liabilities:CC:Santander
      closing_day: 25
    main_checking: Assets:Bank:Checking

banks:
  hsbc:
    type: xml
    account_key: hsbc_cc
    payment_asset_key: main_checking
    card_tag: card:hsbc
    fallback_name: Liabilities:CC:HSBC
    fallback_asset: Assets:Bank:Checking
    kind_strategy: heuristic
  santander_likeu:
    type: tabular
    account_key: santander_cc
    payment_asset_key: main_checking
    card_tag: card:likeu
    fallback_name: Liabilities:CC:Santander
    fallback_asset: Assets:Bank:Checking
    kind_strategy: sign

rules:
  - name: streaming
    any_regex: ["netflix", "spotify", "disney", "hbo"]
    set:
      expense: Expenses:Entertainment:Streaming
      tags: [subscription]
  - name: groceries
    any_regex: ["soriana", "chedraui", "walmart", "superama", "la comer"]
    set:
      expense: Expenses:Food:Groceries
      tags: []
  - name: convenience
    any_regex: ["oxxo", "7\\s*eleven"]
    set:
      expense: Expenses:Food:Convenience
      tags: []

merchant_aliases:
  - canon: oxxo
    any_regex: ["oxxo"]
  - canon: walmart
    any_regex: ["wal\\s*-?\\s*mart", "walmart"]

canonical_accounts:
  cc:hsbc:
    display_name: HSBC 2Now
    type: credit_card
    bank_ids: [hsbc]
    closing_day: 15
  cc:santander:
    display_name: Santander LikeU
    type: credit_card
    bank_ids: [santander_likeu]
    closing_day: 25
`

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter rules.yml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}

			path := filepath.Join(dir, "rules.yml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(starterRules), 0o644); err != nil {
				return fmt.Errorf("writing rules: %w", err)
			}

			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}
