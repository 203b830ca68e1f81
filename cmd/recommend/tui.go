package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/okian/ecoinvest/internal/tui"
	"github.com/okian/ecoinvest/pkg/logger"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive sector form",
	Long: "Opens a form with a sector field. Enter submits and redraws the list and chart; esc quits. " +
		"Errors are shown in the form; use --log-file to keep a log, since the terminal belongs to the form.",
	Args: cobra.NoArgs,
	RunE: runTUI,
}

var (
	tuiSector  string
	tuiLogFile string
)

func init() {
	tuiCmd.Flags().StringVar(&tuiSector, "sector", "", "Pre-fill the sector field")
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Append logs to this file while the form is open")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log, closeLog, err := tuiLogger(tuiLogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	opts := []tui.Option{
		tui.WithTimeout(cfg.Timeout),
		tui.WithLogger(log),
		tui.WithSector(tuiSector),
	}
	if cfg.LatestOnly {
		opts = append(opts, tui.WithLatestOnly())
	}
	p := tea.NewProgram(tui.New(ctx, newSubmitter(), opts...), tea.WithContext(ctx), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// tuiLogger keeps log lines off the alt screen: they go to path when set and
// are dropped otherwise.
func tuiLogger(path, level string) (logger.Logger, func() error, error) {
	if path == "" {
		return logger.Nop(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler, err := newLogHandler(f, level)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if err := logger.Init(logger.WithHandler(handler), logger.WithoutSource()); err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger.Named("tui"), f.Close, nil
}
