package metadata

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/airbusgeo/s2angles/internal/angles"
)

// nanToken is the literal used by the metadata for a missing value (case-sensitive)
const nanToken = "NaN"

// angleGrid is a Zenith or Azimuth element of the tile metadata
type angleGrid struct {
	ColStep *string  `xml:"COL_STEP"`
	RowStep *string  `xml:"ROW_STEP"`
	Values  []string `xml:"Values_List>VALUES"`
}

func splitTokens(row string) []string {
	return strings.FieldsFunc(row, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// parseValues parses the GridSize rows of GridSize tokens of a values list
func parseValues(rows []string) (angles.Grid, error) {
	g := angles.NewGrid()
	if len(rows) != angles.GridSize {
		return g, angles.NewParseError("", "expected %d rows of values, got %d", angles.GridSize, len(rows))
	}
	for i, row := range rows {
		tokens := splitTokens(row)
		if len(tokens) != angles.GridSize {
			return g, angles.NewParseError("", "row %d: expected %d values, got %d", i, angles.GridSize, len(tokens))
		}
		for j, token := range tokens {
			if token == nanToken {
				continue
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return g, angles.NewParseError("", "row %d, column %d: invalid value %q", i, j, token)
			}
			g[i][j] = v
		}
	}
	return g, nil
}

func checkStep(name string, step *string) error {
	if step == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*step), 64)
	if err != nil {
		return angles.NewParseError("", "invalid %s: %q", name, *step)
	}
	if v != angles.GridStep {
		return angles.NewParseError("", "unsupported %s: %v (expected %v)", name, v, angles.GridStep)
	}
	return nil
}

// grid checks the steps and parses the values of the angle grid
func (a *angleGrid) grid() (angles.Grid, error) {
	if a == nil {
		return angles.NewGrid(), angles.NewParseError("", "missing grid")
	}
	if err := checkStep("COL_STEP", a.ColStep); err != nil {
		return angles.NewGrid(), err
	}
	if err := checkStep("ROW_STEP", a.RowStep); err != nil {
		return angles.NewGrid(), err
	}
	return parseValues(a.Values)
}
