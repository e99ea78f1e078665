// Command creditors is a command-line client for a creditors wallet.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/creditors/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
