// Command reactor runs scenario tests, validates scenario files, serves a
// textfield reactor over HTTP and inspects journals.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/reactor/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
