// Command entryrev manages entries and their revision history.
package main

import (
	"os"

	"github.com/kilupskalvis/entryrev/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
