package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/ecoinvest/internal/recommend/term"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List every state ranked by predicted Combined ESI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		states, err := newClient().States(cmd.Context())
		if err != nil {
			return err
		}
		return term.WriteRegions(cmd.OutOrStdout(), states)
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the best ranked states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		top, err := newClient().TopRegions(cmd.Context(), topLimit)
		if err != nil {
			return err
		}
		return term.WriteRegions(cmd.OutOrStdout(), top)
	},
}

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "List known sectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sectors, err := newClient().Sectors(cmd.Context())
		if err != nil {
			return err
		}
		return term.WriteSectors(cmd.OutOrStdout(), sectors)
	},
}

var topLimit int

func init() {
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 0, "Number of states (0 uses the server default)")
	rootCmd.AddCommand(statesCmd, topCmd, sectorsCmd)
}
