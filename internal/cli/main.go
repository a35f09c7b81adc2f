// Package cli wires the engine, speech pipeline and viewer into the facerig
// command.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	version = "dev"

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func Main() {
	_ = godotenv.Load() // RHUBARB_BIN, PIPER_BIN and FACERIG_* overrides

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "facerig",
		Short:         "Real-time facial animation for a talking avatar",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default ~/.facerig/config.yaml, then ./config.yaml)")
	root.PersistentFlags().String("log-level", "", "Override logging.level")

	root.AddCommand(
		newSpeakCommand(),
		newServeCommand(),
		newSimulateCommand(),
		newChannelsCommand(),
	)
	return root
}
