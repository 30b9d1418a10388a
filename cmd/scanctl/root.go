package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const Version = "0.1.0"

var (
	jsonOutput      bool
	skipInteractive bool

	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#01FAC6")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Scan barcodes from a local camera",
	Long: `scanctl opens a camera, decodes barcodes from its frames and prints the first result.

Cameras are captured through ffmpeg and enumerated from video4linux. Configuration
is read from SCANNER_* environment variables.`,
	Version: Version,
	Args:    cobra.NoArgs,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func isTerminal() bool {
	if os.Getenv("CI") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.SetVersionTemplate("scanctl version {{.Version}}\n")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(encodeCmd)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON (disables interactive mode)")
	rootCmd.PersistentFlags().BoolVar(&skipInteractive, "no-interactive", false, "Skip the interactive scan view (for scripts)")
}
