// Command projecttracker runs the ProjectTracker API and its maintenance tasks.
package main

import (
	"fmt"
	"os"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
