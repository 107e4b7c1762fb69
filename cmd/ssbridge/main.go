// ssbridge
//
// An OpenAI-compatible bridge for StackSpot AI. Point your coding
// assistant's OpenAI base URL at ssbridge and it handles the OAuth2 token
// lifecycle and the submit-then-poll execution model for you.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ssbridge",
	Short: "ssbridge - OpenAI-compatible bridge for StackSpot AI",
	Long: `ssbridge exposes StackSpot AI's asynchronous Quick Command API as an
OpenAI-compatible chat-completion endpoint.

  ssbridge check                         Verify credentials (fetches a token)
  ssbridge serve                         Start the bridge server
  ssbridge complete "2+2"                Run a one-shot completion

Credentials come from STACKSPOTAI_CLIENT_ID, STACKSPOTAI_CLIENT_KEY,
STACKSPOTAI_REALM, and STACKSPOTAI_REMOTEQC_NAME.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
