package utils_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	neturl "net/url"
	"os"
	"regexp"
	"syscall"

	"github.com/airbusgeo/s2angles/internal/utils"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
)

var _ = Describe("Temporary error", func() {
	var err error

	var (
		itShouldReturnATemporaryError = func() {
			It("it should return a temporary error", func() {
				Expect(utils.Temporary(err)).To(BeTrue())
			})
		}
		itShouldReturnAPermanentError = func() {
			It("it should return a permanent error", func() {
				Expect(utils.Temporary(err)).To(BeFalse())
			})
		}
	)

	Describe("Temporary", func() {
		JustBeforeEach(func() {
			err = fmt.Errorf("temporary err :%w", utils.MakeTemporary(fmt.Errorf("Temporary")))
		})

		Context("Return temporary", func() {
			itShouldReturnATemporaryError()
		})
	})

	Describe("Permanent", func() {
		JustBeforeEach(func() {
			err = fmt.Errorf("permanent err :%v", utils.MakeTemporary(fmt.Errorf("Temporary")))
		})

		Context("Return permanent", func() {
			itShouldReturnAPermanentError()
		})
	})
})

var _ = Describe("Context errors", func() {
	It("should never retry a cancelled or expired context", func() {
		Expect(utils.Temporary(fmt.Errorf("newreader: %w", context.Canceled))).To(BeFalse())
		Expect(utils.Temporary(context.DeadlineExceeded)).To(BeFalse())
		Expect(utils.Temporary(&neturl.Error{Op: "Get", URL: "https://storage.googleapis.com/b/o", Err: context.Canceled})).To(BeFalse())
	})

	It("should not retry a cancelled context marked as temporary", func() {
		Expect(utils.Temporary(utils.MakeTemporary(context.Canceled))).To(BeFalse())
	})
})

var _ = Describe("Storage errors", func() {
	It("should retry throttling and server errors", func() {
		Expect(utils.Temporary(&googleapi.Error{Code: 429})).To(BeTrue())
		Expect(utils.Temporary(fmt.Errorf("copy: %w", &googleapi.Error{Code: 503}))).To(BeTrue())
	})

	It("should not retry client errors", func() {
		Expect(utils.Temporary(&googleapi.Error{Code: 403})).To(BeFalse())
		Expect(utils.Temporary(errors.New("boom"))).To(BeFalse())
		Expect(utils.Temporary(nil)).To(BeFalse())
	})

	It("should retry a reset connection", func() {
		Expect(utils.Temporary(&neturl.Error{Op: "Get", URL: "https://storage.googleapis.com/b/o", Err: syscall.ECONNRESET})).To(BeTrue())
	})
})

var _ = Describe("F64ToS", func() {
	It("should format without loss", func() {
		Expect(utils.F64ToS(199980)).To(Equal("199980"))
		Expect(utils.F64ToS(-5000)).To(Equal("-5000"))
		Expect(utils.F64ToS(0.1)).To(Equal("0.1"))
		Expect(utils.F64ToS(math.NaN())).To(Equal("NaN"))
	})
})

var _ = Describe("FindRegexGroups", func() {
	reg := regexp.MustCompile("^(?P<Protocol>.+)://(?P<Bucket>[^/]+)/(?P<Path>.*)$")

	It("should return the named groups", func() {
		groups, err := utils.FindRegexGroups(reg, "gs://bucket/S2A.zip")
		Expect(err).To(BeNil())
		Expect(groups).To(Equal(map[string]string{"Protocol": "gs", "Bucket": "bucket", "Path": "S2A.zip"}))
	})

	It("should fail if the value does not match", func() {
		_, err := utils.FindRegexGroups(reg, "/local/S2A.zip")
		Expect(err).NotTo(BeNil())
	})
})

var _ = Describe("IsDir", func() {
	It("should only accept existing directories", func() {
		Expect(utils.IsDir(os.TempDir())).To(BeTrue())
		Expect(utils.IsDir("/this/path/does/not/exist")).To(BeFalse())
	})
})
