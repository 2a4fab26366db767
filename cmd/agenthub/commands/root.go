package commands

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "agenthub",
	Short: "Voice agent hub",
	Long: `agenthub runs a dashboard of voice agents backed by a realtime
speech model.

Configuration is read from the environment (APP_*, GEMINI_*, CAPTURE_*,
PLAYBACK_*, VISUALIZER_*, TTS_*, DATABASE_URL, REDIS_URL).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ttsCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(probeCmd)
}
