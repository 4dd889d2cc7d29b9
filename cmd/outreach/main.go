// Command outreach processes contact sheets from the command line.
package main

import (
	"os"

	"github.com/JonMunkholm/outreach/cmd/outreach/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
