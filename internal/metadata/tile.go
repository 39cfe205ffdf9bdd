package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
)

// Geoposition of the upper-left corner of the tile at a given resolution
type Geoposition struct {
	Resolution int
	ULX, ULY   float64
}

// Tile is the content of the tile metadata document (MTD_TL.xml) needed to compute the angle bands
type Tile struct {
	TileID string
	// CRSCode is the horizontal coordinate system of the tile (e.g. EPSG:32721)
	CRSCode      string
	Geopositions []Geoposition
	Sun          angles.AnglePair
	MeanSun      MeanAngles
	HasMeanSun   bool
	View         angles.ViewStack
}

type MeanAngles struct {
	Zenith, Azimuth float64
}

// Geoposition returns the position of the tile at the given resolution
func (t *Tile) Geoposition(resolution int) (Geoposition, bool) {
	for _, g := range t.Geopositions {
		if g.Resolution == resolution {
			return g, true
		}
	}
	return Geoposition{}, false
}

type viewingGrids struct {
	BandID     string     `xml:"bandId,attr"`
	DetectorID string     `xml:"detectorId,attr"`
	Zenith     *angleGrid `xml:"Zenith"`
	Azimuth    *angleGrid `xml:"Azimuth"`
}

type tileAngles struct {
	SunZenith  *angleGrid `xml:"Sun_Angles_Grid>Zenith"`
	SunAzimuth *angleGrid `xml:"Sun_Angles_Grid>Azimuth"`
	MeanSun    *struct {
		Zenith  string `xml:"ZENITH_ANGLE"`
		Azimuth string `xml:"AZIMUTH_ANGLE"`
	} `xml:"Mean_Sun_Angle"`
	Viewing []viewingGrids `xml:"Viewing_Incidence_Angles_Grids"`
}

// tileDocument maps the elements by local name: any namespace prefix is accepted
type tileDocument struct {
	TileID        string `xml:"General_Info>TILE_ID"`
	TileGeocoding *struct {
		CSCode       string `xml:"HORIZONTAL_CS_CODE"`
		Geopositions []struct {
			Resolution string `xml:"resolution,attr"`
			ULX        string `xml:"ULX"`
			ULY        string `xml:"ULY"`
		} `xml:"Geoposition"`
	} `xml:"Geometric_Info>Tile_Geocoding"`
	TileAngles *tileAngles `xml:"Geometric_Info>Tile_Angles"`
}

// ParseTileFile parses a tile metadata document
func ParseTileFile(path string) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, angles.NewMissingInputError(path, "cannot open tile metadata: %v", err)
	}
	defer f.Close()
	tile, err := ParseTile(f)
	if err != nil {
		return nil, angles.WithPath(err, path)
	}
	return tile, nil
}

// ParseTile parses a tile metadata document.
// It returns a ParseError if the angle grids are absent or malformed. No partial result is returned.
func ParseTile(r io.Reader) (*Tile, error) {
	var doc tileDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, angles.NewParseError("", "malformed tile metadata: %v", err)
	}
	if doc.TileAngles == nil {
		return nil, angles.NewParseError("", "Geometric_Info/Tile_Angles not found")
	}

	tile := Tile{
		TileID: strings.TrimSpace(doc.TileID),
		View:   angles.ViewStack{},
	}
	var err error
	if tile.Sun.Zenith, err = doc.TileAngles.SunZenith.grid(); err != nil {
		return nil, prefix(err, "Sun_Angles_Grid/Zenith")
	}
	if tile.Sun.Azimuth, err = doc.TileAngles.SunAzimuth.grid(); err != nil {
		return nil, prefix(err, "Sun_Angles_Grid/Azimuth")
	}

	if ms := doc.TileAngles.MeanSun; ms != nil {
		z, errz := strconv.ParseFloat(strings.TrimSpace(ms.Zenith), 64)
		a, erra := strconv.ParseFloat(strings.TrimSpace(ms.Azimuth), 64)
		if errz == nil && erra == nil {
			tile.MeanSun, tile.HasMeanSun = MeanAngles{Zenith: z, Azimuth: a}, true
		}
	}

	for _, v := range doc.TileAngles.Viewing {
		band, err := strconv.Atoi(strings.TrimSpace(v.BandID))
		if err != nil || !angles.BandID(band).Valid() {
			return nil, angles.NewParseError("", "Viewing_Incidence_Angles_Grids: invalid bandId %q", v.BandID)
		}
		name := fmt.Sprintf("Viewing_Incidence_Angles_Grids[bandId=%s,detectorId=%s]", v.BandID, v.DetectorID)
		zenith, err := v.Zenith.grid()
		if err != nil {
			return nil, prefix(err, name+"/Zenith")
		}
		azimuth, err := v.Azimuth.grid()
		if err != nil {
			return nil, prefix(err, name+"/Azimuth")
		}
		// One occurrence per detector: the detectors of a band cover disjoint parts of the tile
		pair, ok := tile.View[angles.BandID(band)]
		if !ok {
			pair = angles.AnglePair{Zenith: angles.NewGrid(), Azimuth: angles.NewGrid()}
		}
		pair.Zenith.Merge(zenith)
		pair.Azimuth.Merge(azimuth)
		tile.View[angles.BandID(band)] = pair
	}

	if tg := doc.TileGeocoding; tg != nil {
		tile.CRSCode = strings.TrimSpace(tg.CSCode)
		for _, g := range tg.Geopositions {
			res, errr := strconv.Atoi(strings.TrimSpace(g.Resolution))
			ulx, errx := strconv.ParseFloat(strings.TrimSpace(g.ULX), 64)
			uly, erry := strconv.ParseFloat(strings.TrimSpace(g.ULY), 64)
			if errr == nil && errx == nil && erry == nil {
				tile.Geopositions = append(tile.Geopositions, Geoposition{Resolution: res, ULX: ulx, ULY: uly})
			}
		}
	}

	return &tile, nil
}

func prefix(err error, name string) error {
	if aerr, ok := angles.AsError(err, angles.ParseError); ok {
		return angles.NewParseError(aerr.Path(), "%s: %s", name, aerr.Desc())
	}
	return err
}
