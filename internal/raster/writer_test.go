package raster_test

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/raster"
	"github.com/airbusgeo/s2angles/internal/utils/affine"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteAngleRaster", func() {
	var (
		err    error
		tmpdir string
		output string
		src    *godal.Dataset
		opts   raster.WriteOptions
		size   int
	)

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}
		itShouldWriteTheGrid = func() {
			It("it should keep the grid of the source", func() {
				got, err := raster.OpenReference(output)
				Expect(err).To(BeNil())
				expected, err := raster.ReferenceOf(src)
				Expect(err).To(BeNil())
				Expect(got.SameGrid(expected, 1e-9)).To(BeTrue())
			})
		}
		itShouldHaveType = func(dtype godal.DataType, nodata float64) {
			It("it should have an explicit type and nodata", func() {
				ds, err := godal.Open(output)
				Expect(err).To(BeNil())
				defer ds.Close()
				Expect(ds.Structure().DataType).To(Equal(dtype))
				nd, ok := ds.Bands()[0].NoData()
				Expect(ok).To(BeTrue())
				if math.IsNaN(nodata) {
					Expect(math.IsNaN(nd)).To(BeTrue())
				} else {
					Expect(nd).To(Equal(nodata))
				}
				Expect(ds.Metadata("COMPRESSION", godal.Domain("IMAGE_STRUCTURE"))).To(Equal("DEFLATE"))
			})
		}
	)

	BeforeEach(func() {
		tmpdir, err = os.MkdirTemp("", "s2angles-writer")
		Expect(err).To(BeNil())
		output = filepath.Join(tmpdir, "scene_VZAr.tif")
		opts = raster.WriteOptions{}
		size = 300
	})

	JustBeforeEach(func() {
		src, err = godal.Create(godal.Memory, "", 1, godal.Float64, size, size)
		Expect(err).To(BeNil())
		Expect(src.SetGeoTransform([6]float64(*affine.NorthUp(ulx, uly, 60)))).To(Succeed())
		Expect(src.SetProjection(utmWKT(32721))).To(Succeed())
		values := make([]float64, size*size)
		for i := range values {
			values[i] = 10 + float64(i%size)*0.01
		}
		values[0] = math.NaN()
		values[1] = 12.34
		Expect(src.Bands()[0].Write(0, 0, values, size, size)).To(Succeed())
		err = raster.WriteAngleRaster(context.Background(), src, output, opts)
	})

	AfterEach(func() {
		src.Close()
		os.RemoveAll(tmpdir)
	})

	Context("float32", func() {
		itShouldNotReturnError()
		itShouldWriteTheGrid()
		itShouldHaveType(godal.Float32, math.NaN())

		It("it should keep the angles in degrees", func() {
			ds, err := godal.Open(output)
			Expect(err).To(BeNil())
			defer ds.Close()
			values := readAll(ds)
			Expect(math.IsNaN(values[0])).To(BeTrue())
			Expect(values[1]).To(Equal(float64(float32(12.34))))
			Expect(values[size+5]).To(BeNumerically("~", 10.05, 1e-5))
		})
	})

	Context("int32", func() {
		BeforeEach(func() {
			opts.Format = raster.Int32
		})
		itShouldNotReturnError()
		itShouldWriteTheGrid()
		itShouldHaveType(godal.Int32, raster.Int32NoData)

		It("it should store hundredths of degrees", func() {
			ds, err := godal.Open(output)
			Expect(err).To(BeNil())
			defer ds.Close()
			values := readAll(ds)
			Expect(values[0]).To(Equal(float64(raster.Int32NoData)))
			Expect(values[1]).To(Equal(1234.0))
			Expect(values[size+5]).To(Equal(1005.0))
		})
	})

	Context("cloud optimized", func() {
		BeforeEach(func() {
			opts.COG = true
			size = 1024
		})
		itShouldNotReturnError()
		itShouldWriteTheGrid()
		itShouldHaveType(godal.Float32, math.NaN())

		It("it should have overviews", func() {
			ds, err := godal.Open(output)
			Expect(err).To(BeNil())
			defer ds.Close()
			Expect(ds.Bands()[0].Overviews()).NotTo(BeEmpty())
		})
	})

	Context("unknown format", func() {
		BeforeEach(func() {
			opts.Format = "int8"
		})
		It("it should return a configuration error", func() {
			Expect(angles.IsError(err, angles.ConfigurationError)).To(BeTrue())
			_, serr := os.Stat(output)
			Expect(os.IsNotExist(serr)).To(BeTrue())
		})
	})
})
