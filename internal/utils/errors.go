package utils

import (
	"context"
	"errors"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
)

// transient marks an error as worth retrying
type transient struct{ error }

func (t transient) Temporary() bool { return true }
func (t transient) Unwrap() error   { return t.error }

// MakeTemporary marks err as transient
func MakeTemporary(err error) error {
	return transient{err}
}

// Temporary returns whether an operation that failed with err may succeed if retried.
// A cancelled or expired context is never temporary.
func Temporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE:
			return true
		}
	}

	var marked interface{ Temporary() bool }
	if errors.As(err, &marked) {
		return marked.Temporary()
	}

	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 408 || gapiError.Code == 429 || gapiError.Code >= 500
	}
	return false
}
