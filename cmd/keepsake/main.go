// Command keepsake plays, validates and scripts the anniversary experience.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/keepsake/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
