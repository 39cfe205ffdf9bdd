package metadata_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/metadata"
	"github.com/airbusgeo/s2angles/internal/metadata/metadatatest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseTile", func() {
	var (
		fixture       metadatatest.Tile
		document      string
		returnedTile  *metadata.Tile
		returnedError error
	)

	var (
		itShouldNotReturnAnError = func() {
			It("should not return an error", func() {
				Expect(returnedError).To(BeNil())
			})
		}
		itShouldReturnAParseError = func(msg string) {
			It("should return a ParseError", func() {
				Expect(angles.IsError(returnedError, angles.ParseError)).To(BeTrue(), "%v", returnedError)
				Expect(returnedError.Error()).To(ContainSubstring(msg))
			})
			It("should not return a partial result", func() {
				Expect(returnedTile).To(BeNil())
			})
		}
		itShouldRecoverTheSunGrids = func() {
			It("should recover the sun grids exactly", func() {
				Expect(returnedTile.Sun.Zenith.Equal(fixture.SunZenith)).To(BeTrue())
				Expect(returnedTile.Sun.Azimuth.Equal(fixture.SunAzimuth)).To(BeTrue())
			})
		}
	)

	BeforeEach(func() {
		fixture = metadatatest.DefaultTile()
		document = ""
	})

	JustBeforeEach(func() {
		if document == "" {
			document = fixture.XML()
		}
		returnedTile, returnedError = metadata.ParseTile(strings.NewReader(document))
	})

	Context("on a valid document", func() {
		itShouldNotReturnAnError()
		itShouldRecoverTheSunGrids()
		It("should recover all the bands", func() {
			Expect(returnedTile.View).To(HaveLen(angles.NumBands))
			for b, pairs := range fixture.View {
				Expect(returnedTile.View[b].Zenith.Equal(pairs[0].Zenith)).To(BeTrue())
				Expect(returnedTile.View[b].Azimuth.Equal(pairs[0].Azimuth)).To(BeTrue())
			}
		})
		It("should read the tile geocoding", func() {
			Expect(returnedTile.TileID).To(Equal(metadatatest.DefaultTileID))
			Expect(returnedTile.CRSCode).To(Equal("EPSG:32721"))
			g, ok := returnedTile.Geoposition(10)
			Expect(ok).To(BeTrue())
			Expect(g.ULX).To(Equal(metadatatest.DefaultULX))
			Expect(g.ULY).To(Equal(metadatatest.DefaultULY))
			_, ok = returnedTile.Geoposition(30)
			Expect(ok).To(BeFalse())
		})
		It("should read the mean sun angles", func() {
			Expect(returnedTile.HasMeanSun).To(BeTrue())
			m, _ := fixture.SunZenith.Mean()
			Expect(returnedTile.MeanSun.Zenith).To(BeNumerically("~", m, 1e-9))
		})
	})

	Context("without namespace prefix", func() {
		BeforeEach(func() {
			fixture.Prefix = ""
		})
		itShouldNotReturnAnError()
		itShouldRecoverTheSunGrids()
	})

	Context("with another namespace prefix", func() {
		BeforeEach(func() {
			fixture.Prefix = "ns2"
		})
		itShouldNotReturnAnError()
		itShouldRecoverTheSunGrids()
	})

	Context("with comma separated values", func() {
		BeforeEach(func() {
			fixture.Separator = ", "
		})
		itShouldNotReturnAnError()
		itShouldRecoverTheSunGrids()
	})

	Context("with NaN values", func() {
		BeforeEach(func() {
			fixture.SunZenith[0][0] = math.NaN()
			fixture.SunZenith[22][22] = math.NaN()
			fixture.SunAzimuth[11][5] = math.NaN()
		})
		itShouldNotReturnAnError()
		itShouldRecoverTheSunGrids()
		It("should map NaN tokens to NaN cells", func() {
			Expect(math.IsNaN(returnedTile.Sun.Zenith[0][0])).To(BeTrue())
			Expect(math.IsNaN(returnedTile.Sun.Azimuth[11][5])).To(BeTrue())
			Expect(returnedTile.Sun.Zenith[0][1]).NotTo(BeZero())
		})
	})

	Context("with several detectors per band", func() {
		BeforeEach(func() {
			left, right := fixture.View[3][0], fixture.View[3][0]
			for i := 0; i < angles.GridSize; i++ {
				for j := 0; j < angles.GridSize; j++ {
					if j < 12 {
						right.Zenith[i][j], right.Azimuth[i][j] = math.NaN(), math.NaN()
					} else {
						left.Zenith[i][j], left.Azimuth[i][j] = math.NaN(), math.NaN()
					}
				}
			}
			fixture.View[3] = []angles.AnglePair{left, right}
		})
		itShouldNotReturnAnError()
		It("should merge the detectors", func() {
			expected := metadatatest.DefaultTile().View[3][0]
			Expect(returnedTile.View[3].Zenith.Equal(expected.Zenith)).To(BeTrue())
			Expect(returnedTile.View[3].Azimuth.Equal(expected.Azimuth)).To(BeTrue())
		})
	})

	Context("with only band 7", func() {
		BeforeEach(func() {
			fixture.View = map[angles.BandID][]angles.AnglePair{7: fixture.View[7]}
		})
		itShouldNotReturnAnError()
		It("should only contain band 7", func() {
			Expect(returnedTile.View.Bands()).To(Equal([]angles.BandID{7}))
		})
	})

	Context("without Tile_Angles", func() {
		BeforeEach(func() {
			fixture.OmitTileAngles = true
		})
		itShouldReturnAParseError("Tile_Angles")
	})

	Context("with a short row", func() {
		BeforeEach(func() {
			rows := metadatatest.Rows(fixture.SunZenith, " ")
			short := rows[4][:strings.LastIndex(rows[4], " ")]
			document = strings.Replace(fixture.XML(), "<VALUES>"+rows[4]+"</VALUES>", "<VALUES>"+short+"</VALUES>", 1)
		})
		itShouldReturnAParseError("row 4")
	})

	Context("with a missing row", func() {
		BeforeEach(func() {
			rows := metadatatest.Rows(fixture.SunAzimuth, " ")
			document = strings.Replace(fixture.XML(), "<VALUES>"+rows[22]+"</VALUES>\n", "", 1)
		})
		itShouldReturnAParseError("Sun_Angles_Grid/Azimuth")
	})

	Context("with an invalid token", func() {
		BeforeEach(func() {
			rows := metadatatest.Rows(fixture.SunZenith, " ")
			bad := strings.Replace(rows[2], metadatatest.FormatValue(fixture.SunZenith[2][0]), "nan", 1)
			document = strings.Replace(fixture.XML(), "<VALUES>"+rows[2]+"</VALUES>", "<VALUES>"+bad+"</VALUES>", 1)
		})
		itShouldReturnAParseError(`invalid value "nan"`)
	})

	Context("with an unexpected step", func() {
		BeforeEach(func() {
			fixture.Step = "2500"
		})
		itShouldReturnAParseError("COL_STEP")
	})

	Context("with an invalid band id", func() {
		BeforeEach(func() {
			document = strings.Replace(fixture.XML(), `bandId="12"`, `bandId="B12"`, 1)
		})
		itShouldReturnAParseError("bandId")
	})

	Context("with a malformed document", func() {
		BeforeEach(func() {
			document = "<n1:Level-2A_Tile_ID><Geometric_Info>"
		})
		itShouldReturnAParseError("malformed")
	})
})

var _ = Describe("ParseTileFile", func() {
	It("should set the path of the error", func() {
		dir, err := os.MkdirTemp("", "metadata")
		Expect(err).To(BeNil())
		defer os.RemoveAll(dir)
		fixture := metadatatest.DefaultTile()
		fixture.OmitTileAngles = true
		path := filepath.Join(dir, "MTD_TL.xml")
		Expect(os.WriteFile(path, []byte(fixture.XML()), 0644)).To(Succeed())

		_, err = metadata.ParseTileFile(path)
		aerr, ok := angles.AsError(err, angles.ParseError)
		Expect(ok).To(BeTrue())
		Expect(aerr.Path()).To(Equal(path))
	})
})

var _ = Describe("ParseProduct", func() {
	It("should strip the .SAFE suffix", func() {
		id, err := metadata.ParseProduct(strings.NewReader(metadatatest.ProductXML(metadatatest.DefaultProductURI)))
		Expect(err).To(BeNil())
		Expect(id).To(Equal("S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531"))
	})

	It("should fail without PRODUCT_URI", func() {
		_, err := metadata.ParseProduct(strings.NewReader("<n1:Level-2A_User_Product xmlns:n1=\"x\"><n1:General_Info/></n1:Level-2A_User_Product>"))
		Expect(angles.IsError(err, angles.ParseError)).To(BeTrue())
	})
})
