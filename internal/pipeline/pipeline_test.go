package pipeline_test

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/metrics"
	"github.com/airbusgeo/s2angles/internal/pipeline"
	"github.com/airbusgeo/s2angles/internal/product"
	"github.com/airbusgeo/s2angles/internal/raster"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Generate", func() {
	var (
		ctx       context.Context
		err       error
		tmpdir    string
		workDir   string
		cfg       pipeline.Config
		collector *metrics.Collector
		prod      safeProduct
		input     string
		outputDir string
		outputs   pipeline.Outputs
		reference string
	)

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}
		itShouldReturnError = func(stage pipeline.Stage, code angles.ErrorCode) {
			It("it should return a "+code.String()+" in stage "+string(stage), func() {
				Expect(angles.IsError(err, code)).To(BeTrue(), "got %v", err)
				s, ok := pipeline.FailedStage(err)
				Expect(ok).To(BeTrue())
				Expect(s).To(Equal(stage))
				Expect(testutil.ToFloat64(collector.FailuresTotal.WithLabelValues(string(stage), code.String()))).To(Equal(1.0))
			})
		}
		itShouldWriteOutputsIn = func(dir func() string) {
			It("it should write the four rasters in the output folder", func() {
				Expect(outputs.Paths()).To(HaveLen(4))
				for _, k := range angles.Kinds {
					Expect(outputs.Get(k)).To(Equal(filepath.Join(dir(), angles.OutputName(sceneID, k))))
					Expect(outputs.Get(k)).To(BeARegularFile())
				}
			})
		}
		itShouldHaveTheGridOfTheReference = func() {
			It("it should write the rasters on the grid of the reference band", func() {
				ref, err := raster.OpenReference(reference)
				Expect(err).To(BeNil())
				for _, p := range outputs.Paths() {
					out, err := raster.OpenReference(p)
					Expect(err).To(BeNil())
					Expect(out.SameGrid(ref, 1e-6)).To(BeTrue(), "%s: %v != %v", p, out, ref)
					Expect(out.HasNoData).To(BeTrue())
				}
			})
		}
		itShouldNotLeaveWorkspace = func() {
			It("it should remove the workspace", func() {
				Expect(workspaces(workDir)).To(BeEmpty())
			})
		}
		itShouldNotCreateOutputFolder = func() {
			It("it should not create the output folder", func() {
				Expect(filepath.Join(filepath.Dir(input), product.OutputDir)).NotTo(BeADirectory())
				Expect(filepath.Join(input, "GRANULE", granuleName, product.OutputDir)).NotTo(BeADirectory())
			})
		}
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpdir, err = os.MkdirTemp("", "s2angles-pipeline")
		Expect(err).To(BeNil())
		workDir = filepath.Join(tmpdir, "work")
		Expect(os.Mkdir(workDir, 0777)).To(Succeed())
		cfg = pipeline.DefaultConfig()
		cfg.WorkDir = workDir
		collector = metrics.NewCollector()
		prod = defaultProduct()
		outputDir = ""
		outputs = pipeline.Outputs{}
	})

	AfterEach(func() {
		os.RemoveAll(tmpdir)
	})

	Context("SAFE input", func() {
		var granule string
		JustBeforeEach(func() {
			input = writeSAFE(tmpdir, prod)
			granule = filepath.Join(input, "GRANULE", granuleName)
			reference = filepath.Join(granule, "IMG_DATA", "R60m", bandName)
			var p *pipeline.Pipeline
			p, err = pipeline.New(cfg, collector)
			Expect(err).To(BeNil())
			outputs, err = p.Generate(ctx, input, outputDir)
		})

		Context("default configuration", func() {
			itShouldNotReturnError()
			itShouldWriteOutputsIn(func() string { return filepath.Join(granule, product.OutputDir) })
			itShouldHaveTheGridOfTheReference()
			itShouldNotLeaveWorkspace()

			It("it should write float32 angles", func() {
				values, dtype := readRaster(outputs.SolarZenith)
				Expect(dtype).To(Equal(godal.Float32))
				Expect(values[0]).To(BeNumerically("~", prod.Tile.SunZenith[0][0], 1e-4))
				for _, v := range values {
					Expect(math.IsNaN(v)).To(BeFalse())
				}
			})
			It("it should record the metrics", func() {
				Expect(testutil.ToFloat64(collector.RunsTotal.WithLabelValues("success"))).To(Equal(1.0))
				Expect(testutil.ToFloat64(collector.OutputsTotal.WithLabelValues("VAAr"))).To(Equal(1.0))
			})
		})

		Context("output folder", func() {
			BeforeEach(func() {
				outputDir = filepath.Join(tmpdir, "out", "angles")
			})
			itShouldNotReturnError()
			itShouldWriteOutputsIn(func() string { return outputDir })
			It("it should not write in the granule", func() {
				Expect(filepath.Join(granule, product.OutputDir)).NotTo(BeADirectory())
			})
		})

		Context("parallel workers and int32 format", func() {
			BeforeEach(func() {
				cfg.Workers = 4
				cfg.Format = raster.Int32
			})
			itShouldNotReturnError()
			itShouldHaveTheGridOfTheReference()
			itShouldNotLeaveWorkspace()
			It("it should write angles in hundredths of degrees", func() {
				values, dtype := readRaster(outputs.SolarZenith)
				Expect(dtype).To(Equal(godal.Int32))
				Expect(values[0]).To(BeNumerically("~", math.Round(prod.Tile.SunZenith[0][0]*100), 1))
			})
		})

		Context("without product metadata", func() {
			BeforeEach(func() {
				prod.WithProduct = false
			})
			itShouldNotReturnError()
			It("it should name the rasters after the tile", func() {
				Expect(filepath.Base(outputs.SolarZenith)).To(Equal(prod.Tile.TileID + "_SZAr.tif"))
			})
		})

		Context("missing Tile_Angles", func() {
			BeforeEach(func() {
				prod.Tile.OmitTileAngles = true
			})
			itShouldReturnError(pipeline.Parsed, angles.ParseError)
			itShouldNotCreateOutputFolder()
			itShouldNotLeaveWorkspace()
		})

		Context("missing reference band", func() {
			BeforeEach(func() {
				prod.WithReference = false
			})
			itShouldReturnError(pipeline.Located, angles.MissingInputError)
			itShouldNotCreateOutputFolder()
		})

		Context("only band 7", func() {
			var fixed, mean []float64
			BeforeEach(func() {
				prod.Tile.View = map[angles.BandID][]angles.AnglePair{7: prod.Tile.View[7]}
			})
			JustBeforeEach(func() {
				Expect(err).To(BeNil())
				fixed, _ = readRaster(outputs.ViewZenith)
				cfg.Policy = angles.MeanBands
				p, err := pipeline.New(cfg, nil)
				Expect(err).To(BeNil())
				out, err := p.Generate(ctx, input, filepath.Join(tmpdir, "mean"))
				Expect(err).To(BeNil())
				mean, _ = readRaster(out.ViewZenith)
			})
			It("it should produce the same view angles with both policies", func() {
				Expect(mean).To(Equal(fixed))
			})
		})

		Context("band policy on a missing band", func() {
			BeforeEach(func() {
				delete(prod.Tile.View, 7)
			})
			itShouldReturnError(pipeline.Reduced, angles.ConfigurationError)
			itShouldNotCreateOutputFolder()
		})

		Context("output location is not writable", func() {
			BeforeEach(func() {
				writeFile(filepath.Join(tmpdir, "file"), "")
				outputDir = filepath.Join(tmpdir, "file", "angles")
			})
			It("it should fail while finalizing", func() {
				s, ok := pipeline.FailedStage(err)
				Expect(ok).To(BeTrue())
				Expect(s).To(Equal(pipeline.Finalized))
			})
			itShouldNotLeaveWorkspace()
		})

		Context("cancelled context", func() {
			BeforeEach(func() {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			})
			It("it should return the context error", func() {
				Expect(err).To(MatchError(context.Canceled))
			})
			itShouldNotLeaveWorkspace()
		})
	})

	Context("tile metadata input", func() {
		var granule string
		JustBeforeEach(func() {
			safe := writeSAFE(tmpdir, prod)
			granule = filepath.Join(safe, "GRANULE", granuleName)
			input = filepath.Join(granule, "MTD_TL.xml")
			reference = filepath.Join(granule, "IMG_DATA", "R60m", bandName)
			var p *pipeline.Pipeline
			p, err = pipeline.New(cfg, collector)
			Expect(err).To(BeNil())
			outputs, err = p.Generate(ctx, input, outputDir)
		})
		itShouldNotReturnError()
		itShouldWriteOutputsIn(func() string { return filepath.Join(granule, product.OutputDir) })
		itShouldHaveTheGridOfTheReference()
	})

	Context("archive input", func() {
		JustBeforeEach(func() {
			safe := writeSAFE(filepath.Join(tmpdir, "src"), prod)
			reference = filepath.Join(safe, "GRANULE", granuleName, "IMG_DATA", "R60m", bandName)
			input = filepath.Join(tmpdir, "archives", archiveName)
			Expect(os.MkdirAll(filepath.Dir(input), 0777)).To(Succeed())
			zipDir(safe, input)
			var p *pipeline.Pipeline
			p, err = pipeline.New(cfg, collector)
			Expect(err).To(BeNil())
			outputs, err = p.Generate(ctx, input, outputDir)
		})

		Context("valid archive", func() {
			itShouldNotReturnError()
			itShouldWriteOutputsIn(func() string { return filepath.Join(tmpdir, "archives") })
			itShouldHaveTheGridOfTheReference()
			itShouldNotLeaveWorkspace()
		})

		Context("failure after extraction", func() {
			BeforeEach(func() {
				prod.Tile.OmitTileAngles = true
			})
			itShouldReturnError(pipeline.Parsed, angles.ParseError)
			itShouldNotLeaveWorkspace()
			It("it should not write any raster next to the archive", func() {
				matches, _ := filepath.Glob(filepath.Join(tmpdir, "archives", "*.tif"))
				Expect(matches).To(BeEmpty())
			})
		})

		Context("failure while resampling", func() {
			var itShouldNotWriteAnyOutput = func() {
				It("it should not write any raster next to the archive", func() {
					entries, err := os.ReadDir(filepath.Join(tmpdir, "archives"))
					Expect(err).To(BeNil())
					Expect(entries).To(HaveLen(1))
					Expect(entries[0].Name()).To(Equal(archiveName))
					Expect(testutil.ToFloat64(collector.OutputsTotal.WithLabelValues(angles.SolarZenith.Suffix()))).To(Equal(0.0))
				})
			}
			BeforeEach(func() {
				prod.ReferenceWithoutCRS = true
			})

			Context("sequential jobs", func() {
				itShouldReturnError(pipeline.Resampled, angles.ResamplingError)
				itShouldNotLeaveWorkspace()
				itShouldNotWriteAnyOutput()
			})

			Context("concurrent jobs", func() {
				BeforeEach(func() {
					cfg.Workers = 4
				})
				itShouldReturnError(pipeline.Resampled, angles.ResamplingError)
				itShouldNotLeaveWorkspace()
				itShouldNotWriteAnyOutput()
			})
		})
	})

	Context("missing input", func() {
		JustBeforeEach(func() {
			input = filepath.Join(tmpdir, "nothing.SAFE")
			var p *pipeline.Pipeline
			p, err = pipeline.New(cfg, collector)
			Expect(err).To(BeNil())
			outputs, err = p.Generate(ctx, input, outputDir)
		})
		itShouldReturnError(pipeline.Located, angles.MissingInputError)
		itShouldNotLeaveWorkspace()
	})
})

var _ = Describe("New", func() {
	It("it should reject an invalid configuration", func() {
		for _, modify := range []func(*pipeline.Config){
			func(c *pipeline.Config) { c.Band = 13 },
			func(c *pipeline.Config) { c.Policy = "median" },
			func(c *pipeline.Config) { c.Edge = 21 },
			func(c *pipeline.Config) { c.Format = "int16" },
			func(c *pipeline.Config) { c.Workers = -1 },
		} {
			cfg := pipeline.DefaultConfig()
			modify(&cfg)
			_, err := pipeline.New(cfg, nil)
			Expect(angles.IsError(err, angles.ConfigurationError)).To(BeTrue(), "%+v: got %v", cfg, err)
		}
	})
})
