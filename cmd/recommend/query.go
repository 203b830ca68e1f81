package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/okian/ecoinvest/internal/recommend"
	"github.com/okian/ecoinvest/internal/recommend/term"
	"github.com/okian/ecoinvest/pkg/logger"
)

var queryCmd = &cobra.Command{
	Use:   "query [sector]",
	Short: "Print recommendations for one sector",
	Long:  "Posts the sector to /recommendations_by_sector and prints either the server's message or one line per state followed by a bar chart of Combined ESI.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuery,
}

var querySector string

func init() {
	queryCmd.Flags().StringVar(&querySector, "sector", "", "Sector to query (sent as given)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	sector := querySector
	switch {
	case len(args) == 1:
		sector = args[0]
	case !cmd.Flags().Changed("sector"):
		return errors.New("a sector is required: recommend query <sector> or --sector")
	}

	out := cmd.OutOrStdout()
	chartOpts := []term.ChartOption{term.WithWidth(cfg.Width)}
	if cfg.NoColor {
		chartOpts = append(chartOpts, term.WithNoColor())
	}
	opts := []recommend.Option{recommend.WithLogger(logger.Get())}
	if cfg.LatestOnly {
		opts = append(opts, recommend.WithLatestOnly())
	}

	h := recommend.New(newSubmitter(), term.NewListArea(out), term.NewBarChart(out, chartOpts...), opts...)
	_, err := h.Submit(cmd.Context(), sector)
	return err
}
