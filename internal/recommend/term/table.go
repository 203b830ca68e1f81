package term

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/okian/ecoinvest/internal/domain/types"
	"github.com/okian/ecoinvest/internal/recommend"
)

// WriteRegions prints ranked regions as a table.
func WriteRegions(w io.Writer, regions []types.Region) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "State", "Combined ESI", "Predicted", "Initiatives"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(regions))
	for _, r := range regions {
		data = append(data, []string{
			strconv.FormatFloat(r.Rank, 'f', -1, 64),
			r.State,
			recommend.FormatScore(r.CombinedESI),
			strconv.FormatFloat(r.PredictedESI, 'f', 2, 64),
			strings.Join(r.Initiatives, ", "),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteSectors prints one sector per line.
func WriteSectors(w io.Writer, sectors []string) error {
	for _, s := range sectors {
		if _, err := io.WriteString(w, s+"\n"); err != nil {
			return err
		}
	}
	return nil
}
