package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/ecoinvest/internal/dataset"
	"github.com/okian/ecoinvest/internal/domain/model"
	"github.com/okian/ecoinvest/internal/domain/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the server's current states to an XLSX dataset",
	Long:  "Fetches /api/states and writes a workbook the server accepts as dataset_path.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Path to the output .xlsx file (required)")
	if err := exportCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	regions, err := newClient().States(cmd.Context())
	if err != nil {
		return err
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOut, err)
	}
	if err := dataset.WriteXLSX(f, toStates(regions)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d states to %s\n", len(regions), exportOut)
	return nil
}

func toStates(regions []types.Region) []model.State {
	out := make([]model.State, len(regions))
	for i, r := range regions {
		out[i] = model.State{
			Name:          r.State,
			NormalizedESI: r.NormalizedESI,
			Environmental: r.Environmental,
			Social:        r.Social,
			Governance:    r.Governance,
			Initiatives:   r.Initiatives,
		}
	}
	return out
}
