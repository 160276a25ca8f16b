// Command fairshare serves the FairShare settlement API and carries the
// operational subcommands around it.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
