// Command relq compiles query models into T-SQL commands.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
