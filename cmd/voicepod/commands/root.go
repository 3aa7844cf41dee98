package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "voicepod",
	Short: "Voice-assistant endpoint runtime",
	Long: `voicepod - the control core of a voice-assistant endpoint.

It captures microphone audio, streams it to a cloud service over the
configured transport (websocket or mqtt), plays back synthesized
speech, and reflects device state driven by structured control
messages.

Configuration lives in a YAML file (default: voicepod.yaml); a corrupt
file is reset to defaults at startup. Environment variables from a
.env file in the working directory are loaded first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "voicepod.yaml", "config file path")
}

func initEnv() {
	// Missing .env is the normal case.
	godotenv.Load()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
