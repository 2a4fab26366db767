// Command agenthub serves the voice agent dashboard and its realtime
// session pipeline.
//
// Usage:
//
//	agenthub [command] [flags]
//
// Commands:
//
//	serve   - run the HTTP server (default)
//	tts     - synthesize a voice preview to a file
//	roster  - inspect and validate the agent roster
//	probe   - drive a session over the websocket and report latency
package main

import (
	"fmt"
	"os"

	"github.com/ent0n29/agenthub/cmd/agenthub/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
