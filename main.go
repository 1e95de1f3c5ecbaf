// go_vidqa: answers questions about a YouTube video from its captions.
//
// Serves the browser-extension JSON API (POST /api/askyou) and an MCP endpoint
// exposing the ask_video tool, or answers a single question from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
