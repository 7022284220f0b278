package main

import (
	"os"

	"github.com/cuentas-dev/cuentas/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
