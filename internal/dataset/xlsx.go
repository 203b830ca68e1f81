package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/ecoinvest/internal/domain/model"
)

// Column headers expected on the first sheet's first row. Order does not matter.
const (
	ColState         = "State"
	ColNormalizedESI = "Normalized ESI Score"
	ColEnvironmental = "Environmental Score"
	ColSocial        = "Social Score"
	ColGovernance    = "Governance Score"
	ColInitiatives   = "Sustainable Initiatives"
)

// Columns lists the headers in the order WriteXLSX emits them.
var Columns = []string{ColState, ColNormalizedESI, ColEnvironmental, ColSocial, ColGovernance, ColInitiatives}

// ReadXLSX reads the first sheet of a workbook. Initiatives are a
// comma-separated list in one cell.
func ReadXLSX(r io.Reader) ([]model.State, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidDataset)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrInvalidDataset)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidDataset, col)
		}
	}

	cell := func(r []string, col string) string {
		if i := idx[col]; i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}
	num := func(r []string, line int, col string) (float64, error) {
		v, err := strconv.ParseFloat(cell(r, col), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: row %d column %q: %w", ErrInvalidDataset, line, col, err)
		}
		return v, nil
	}

	states := make([]model.State, 0, len(rows)-1)
	for n, r := range rows[1:] {
		line := n + 2
		if cell(r, ColState) == "" {
			continue
		}
		s := model.State{Name: cell(r, ColState)}
		if s.NormalizedESI, err = num(r, line, ColNormalizedESI); err != nil {
			return nil, err
		}
		if s.Environmental, err = num(r, line, ColEnvironmental); err != nil {
			return nil, err
		}
		if s.Social, err = num(r, line, ColSocial); err != nil {
			return nil, err
		}
		if s.Governance, err = num(r, line, ColGovernance); err != nil {
			return nil, err
		}
		for _, part := range strings.Split(cell(r, ColInitiatives), ",") {
			if p := strings.TrimSpace(part); p != "" {
				s.Initiatives = append(s.Initiatives, p)
			}
		}
		states = append(states, s)
	}
	return states, validate(states)
}

// WriteXLSX writes states as a single-sheet workbook readable by ReadXLSX.
func WriteXLSX(w io.Writer, states []model.State) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, s := range states {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{s.Name, s.NormalizedESI, s.Environmental, s.Social, s.Governance, strings.Join(s.Initiatives, ", ")}
		if err := f.SetSheetRow(sheet, cellRef, &values); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
