// Command palletwatch ingests pallet-return notifications and reminds
// partners about missing driver data.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/roach88/palletwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "palletwatch:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
