// Command recommend queries an eco-invest server for sector recommendations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/okian/ecoinvest/internal/config"
	"github.com/okian/ecoinvest/internal/recommend"
	"github.com/okian/ecoinvest/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "recommend",
	Short:             "Sector recommendations from an eco-invest server",
	Long:              "Submits a sector to an eco-invest server and prints the matching states with their Combined ESI as a list and a bar chart.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	flagServer     string
	flagTimeout    time.Duration
	flagLogLevel   string
	flagLatestOnly bool
	flagNoColor    bool
	flagWidth      int

	cfg *config.ClientConfig
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagServer, "server", "s", "", "Server base URL (default from config, http://localhost:5000)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Request timeout")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flagLatestOnly, "latest-only", false, "Drop replies of superseded submissions")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable coloured output")
	pf.IntVar(&flagWidth, "width", 0, "Output width in columns (0 detects the terminal)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers flags over the koanf client config and sets up logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadClient(cmd.Context())
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		c.BaseURL = flagServer
	}
	if flags.Changed("timeout") {
		c.Timeout = flagTimeout
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("latest-only") {
		c.LatestOnly = flagLatestOnly
	}
	if flags.Changed("no-color") {
		c.NoColor = flagNoColor
	}
	if flags.Changed("width") {
		c.Width = flagWidth
	}
	if err := c.Validate(); err != nil {
		return err
	}

	handler, err := newLogHandler(cmd.ErrOrStderr(), c.LogLevel)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithHandler(handler), logger.WithoutSource()); err != nil {
		return err
	}

	cfg = c
	return nil
}

func newLogHandler(w io.Writer, level string) (slog.Handler, error) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level %q", config.ErrInvalidConfig, level)
	}
	return charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          "recommend",
		Level:           lvl,
		ReportTimestamp: true,
	}), nil
}

func newSubmitter() *recommend.HTTPSubmitter {
	return recommend.NewHTTPSubmitter(cfg.BaseURL, recommend.WithTimeout(cfg.Timeout))
}

func newClient() *recommend.Client {
	return recommend.NewClient(cfg.BaseURL, cfg.Timeout)
}
