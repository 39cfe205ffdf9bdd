// Package metadatatest generates Sentinel-2 metadata documents for tests
package metadatatest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
)

const (
	DefaultTileID     = "S2A_OPER_MSI_L2A_TL_SGS__20190105T155531_A018533_T21HTC_N02.11"
	DefaultProductURI = "S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE"
	DefaultULX        = 199980.
	DefaultULY        = 6300040.
)

// Tile describes a tile metadata document
type Tile struct {
	TileID string
	// Prefix is the namespace prefix of the root elements (e.g. "n1")
	Prefix     string
	CRSCode    string
	ULX, ULY   float64
	SunZenith  angles.Grid
	SunAzimuth angles.Grid
	// View lists the grids of each band, one pair per detector
	View           map[angles.BandID][]angles.AnglePair
	Step           string
	Separator      string
	OmitTileAngles bool
}

// Gradient returns a grid varying linearly from base, by dx per column and dy per row
func Gradient(base, dx, dy float64) angles.Grid {
	g := angles.NewGrid()
	for i := range g {
		for j := range g[i] {
			g[i][j] = base + dx*float64(j) + dy*float64(i)
		}
	}
	return g
}

// DefaultTile returns a valid tile with all the bands and one detector
func DefaultTile() Tile {
	t := Tile{
		TileID:     DefaultTileID,
		Prefix:     "n1",
		CRSCode:    "EPSG:32721",
		ULX:        DefaultULX,
		ULY:        DefaultULY,
		SunZenith:  Gradient(30.1234567, 0.05, 0.1),
		SunAzimuth: Gradient(45.9876543, 0.02, -0.03),
		View:       map[angles.BandID][]angles.AnglePair{},
		Step:       "5000",
		Separator:  " ",
	}
	for b := angles.BandID(0); b < angles.NumBands; b++ {
		t.View[b] = []angles.AnglePair{{
			Zenith:  Gradient(2+0.1*float64(b), 0.3, 0.01),
			Azimuth: Gradient(100+float64(b), -0.2, 0.05),
		}}
	}
	return t
}

// FormatValue formats v so that it is parsed back exactly
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Rows returns the VALUES rows of the grid
func Rows(g angles.Grid, sep string) []string {
	rows := make([]string, angles.GridSize)
	for i := range g {
		tokens := make([]string, angles.GridSize)
		for j := range g[i] {
			tokens[j] = FormatValue(g[i][j])
		}
		rows[i] = strings.Join(tokens, sep)
	}
	return rows
}

func (t Tile) grid(sb *strings.Builder, name string, g angles.Grid) {
	fmt.Fprintf(sb, "<%s>\n<COL_STEP unit=\"m\">%s</COL_STEP>\n<ROW_STEP unit=\"m\">%s</ROW_STEP>\n<Values_List>\n", name, t.Step, t.Step)
	for _, row := range Rows(g, t.Separator) {
		fmt.Fprintf(sb, "<VALUES>%s</VALUES>\n", row)
	}
	fmt.Fprintf(sb, "</Values_List>\n</%s>\n", name)
}

// XML returns the tile metadata document
func (t Tile) XML() string {
	p := ""
	if t.Prefix != "" {
		p = t.Prefix + ":"
	}
	sb := &strings.Builder{}
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	xmlns := "xmlns"
	if t.Prefix != "" {
		xmlns += ":" + t.Prefix
	}
	fmt.Fprintf(sb, `<%sLevel-2A_Tile_ID %s="https://psd-14.sentinel2.eo.esa.int/PSD/S2_PDI_Level-2A_Tile_Metadata.xsd">`+"\n", p, xmlns)
	fmt.Fprintf(sb, "<%sGeneral_Info>\n<TILE_ID metadataLevel=\"Brief\">%s</TILE_ID>\n</%sGeneral_Info>\n", p, t.TileID, p)
	fmt.Fprintf(sb, "<%sGeometric_Info>\n", p)
	fmt.Fprintf(sb, "<Tile_Geocoding metadataLevel=\"Brief\">\n<HORIZONTAL_CS_CODE>%s</HORIZONTAL_CS_CODE>\n", t.CRSCode)
	for _, res := range []int{10, 20, 60} {
		fmt.Fprintf(sb, "<Geoposition resolution=\"%d\">\n<ULX>%s</ULX>\n<ULY>%s</ULY>\n<XDIM>%d</XDIM>\n<YDIM>%d</YDIM>\n</Geoposition>\n",
			res, FormatValue(t.ULX), FormatValue(t.ULY), res, -res)
	}
	sb.WriteString("</Tile_Geocoding>\n")
	if !t.OmitTileAngles {
		sb.WriteString("<Tile_Angles>\n<Sun_Angles_Grid>\n")
		t.grid(sb, "Zenith", t.SunZenith)
		t.grid(sb, "Azimuth", t.SunAzimuth)
		sb.WriteString("</Sun_Angles_Grid>\n")
		zm, _ := t.SunZenith.Mean()
		am, _ := t.SunAzimuth.Mean()
		fmt.Fprintf(sb, "<Mean_Sun_Angle>\n<ZENITH_ANGLE unit=\"deg\">%s</ZENITH_ANGLE>\n<AZIMUTH_ANGLE unit=\"deg\">%s</AZIMUTH_ANGLE>\n</Mean_Sun_Angle>\n", FormatValue(zm), FormatValue(am))
		bands := make([]int, 0, len(t.View))
		for b := range t.View {
			bands = append(bands, int(b))
		}
		sort.Ints(bands)
		for _, b := range bands {
			for d, pair := range t.View[angles.BandID(b)] {
				fmt.Fprintf(sb, "<Viewing_Incidence_Angles_Grids bandId=\"%d\" detectorId=\"%d\">\n", b, d+1)
				t.grid(sb, "Zenith", pair.Zenith)
				t.grid(sb, "Azimuth", pair.Azimuth)
				sb.WriteString("</Viewing_Incidence_Angles_Grids>\n")
			}
		}
		sb.WriteString("</Tile_Angles>\n")
	}
	fmt.Fprintf(sb, "</%sGeometric_Info>\n</%sLevel-2A_Tile_ID>\n", p, p)
	return sb.String()
}

// ProductXML returns a product metadata document
func ProductXML(productURI string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<n1:Level-2A_User_Product xmlns:n1="https://psd-14.sentinel2.eo.esa.int/PSD/User_Product_Level-2A.xsd">
<n1:General_Info>
<Product_Info>
<PRODUCT_START_TIME>2019-01-05T14:00:51.024Z</PRODUCT_START_TIME>
<PRODUCT_URI>` + productURI + `</PRODUCT_URI>
<PROCESSING_LEVEL>Level-2A</PROCESSING_LEVEL>
</Product_Info>
</n1:General_Info>
</n1:Level-2A_User_Product>
`
}
