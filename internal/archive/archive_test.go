package archive_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/archive"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type entry struct {
	name    string
	content string
}

func writeZip(path string, entries []entry) {
	f, err := os.Create(path)
	Expect(err).To(BeNil())
	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		Expect(err).To(BeNil())
		_, err = fw.Write([]byte(e.content))
		Expect(err).To(BeNil())
	}
	Expect(w.Close()).To(Succeed())
	Expect(f.Close()).To(Succeed())
}

var _ = Describe("Extract", func() {
	var (
		ctx     context.Context
		err     error
		tmpdir  string
		zipPath string
		dest    string
		root    string
		entries []entry
	)

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}
		itShouldReturnAnArchiveError = func() {
			It("it should return an ArchiveError", func() {
				Expect(angles.IsError(err, angles.ArchiveError)).To(BeTrue(), "got %v", err)
			})
		}
		itShouldExtract = func(files ...string) {
			It("it should extract the files", func() {
				for _, f := range files {
					Expect(filepath.Join(dest, f)).To(BeARegularFile())
				}
			})
		}
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpdir, err = os.MkdirTemp("", "s2angles-archive")
		Expect(err).To(BeNil())
		zipPath = filepath.Join(tmpdir, "product.zip")
		dest = filepath.Join(tmpdir, "workspace")
		entries = []entry{
			{"S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/", ""},
			{"S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/MTD_MSIL2A.xml", "<product/>"},
			{"S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/GRANULE/L2A_T21HTC/MTD_TL.xml", "<tile/>"},
			{"__MACOSX/S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/._MTD_MSIL2A.xml", "garbage"},
		}
	})

	JustBeforeEach(func() {
		if entries != nil {
			writeZip(zipPath, entries)
		}
		root, err = archive.Extract(ctx, zipPath, dest)
	})

	AfterEach(func() {
		os.RemoveAll(tmpdir)
	})

	Context("zipped SAFE", func() {
		itShouldNotReturnError()
		itShouldExtract(
			"S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/MTD_MSIL2A.xml",
			"S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE/GRANULE/L2A_T21HTC/MTD_TL.xml",
		)
		It("it should return the SAFE folder", func() {
			Expect(root).To(Equal(filepath.Join(dest, "S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE")))
			Expect(root).To(BeADirectory())
		})
		It("it should skip the macOS metadata", func() {
			Expect(filepath.Join(dest, "__MACOSX")).NotTo(BeAnExistingFile())
		})
	})

	Context("without folder entries", func() {
		BeforeEach(func() {
			entries = entries[1:]
		})
		itShouldNotReturnError()
		It("it should return the top folder of the first file", func() {
			Expect(root).To(Equal(filepath.Join(dest, "S2A_MSIL2A_20190105T140051_N0211_R067_T21HTC_20190105T155531.SAFE")))
		})
	})

	Context("loose files", func() {
		BeforeEach(func() {
			entries = []entry{{"MTD_MSIL2A.xml", "<product/>"}, {"MTD_TL.xml", "<tile/>"}, {"IMG/T21HTC_B04.tif", ""}}
		})
		itShouldNotReturnError()
		itShouldExtract("MTD_MSIL2A.xml", "MTD_TL.xml", "IMG/T21HTC_B04.tif")
		It("it should return the destination", func() {
			Expect(root).To(Equal(dest))
		})
	})

	Context("zip slip", func() {
		BeforeEach(func() {
			entries = append(entries, entry{"S2A.SAFE/../../evil.txt", "evil"})
		})
		itShouldReturnAnArchiveError()
		It("it should not write outside the destination", func() {
			Expect(filepath.Join(tmpdir, "evil.txt")).NotTo(BeAnExistingFile())
		})
	})

	Context("empty archive", func() {
		BeforeEach(func() {
			entries = []entry{}
		})
		itShouldReturnAnArchiveError()
	})

	Context("not an archive", func() {
		BeforeEach(func() {
			entries = nil
			Expect(os.WriteFile(zipPath, []byte("not a zip"), 0644)).To(Succeed())
		})
		itShouldReturnAnArchiveError()
	})

	Context("missing archive", func() {
		BeforeEach(func() {
			entries = nil
		})
		itShouldReturnAnArchiveError()
		It("it should report the archive path", func() {
			e, ok := angles.AsError(err, angles.ArchiveError)
			Expect(ok).To(BeTrue())
			Expect(e.Path()).To(Equal(zipPath))
		})
	})

	Context("cancelled", func() {
		BeforeEach(func() {
			cctx, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cctx
		})
		It("it should return the context error", func() {
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
