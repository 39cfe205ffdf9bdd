package angles

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	// ParseError is raised on malformed or absent metadata structure
	ParseError ErrorCode = iota
	// MissingInputError is raised when a required file cannot be discovered
	MissingInputError
	// ConfigurationError is raised on an invalid reducer policy or band id
	ConfigurationError
	// ReferenceRasterError is raised when the reference raster cannot be used
	ReferenceRasterError
	// ResamplingError is raised on raster I/O or CRS mismatch during resampling
	ResamplingError
	// ArchiveError is raised on a corrupt or unexpected archive layout
	ArchiveError
)

func (c ErrorCode) String() string {
	switch c {
	case ParseError:
		return "ParseError"
	case MissingInputError:
		return "MissingInputError"
	case ConfigurationError:
		return "ConfigurationError"
	case ReferenceRasterError:
		return "ReferenceRasterError"
	case ResamplingError:
		return "ResamplingError"
	case ArchiveError:
		return "ArchiveError"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

type Error struct {
	code ErrorCode
	path string
	desc string
}

func newError(code ErrorCode, path, desc string, a ...interface{}) error {
	return Error{code: code, path: path, desc: fmt.Sprintf(desc, a...)}
}

// NewParseError creates a new error stating that a metadata document is malformed
func NewParseError(path, desc string, a ...interface{}) error {
	return newError(ParseError, path, desc, a...)
}

// NewMissingInputError creates a new error stating that a required input cannot be found
func NewMissingInputError(path, desc string, a ...interface{}) error {
	return newError(MissingInputError, path, desc, a...)
}

// NewConfigurationError creates a new error stating that the configuration is invalid
func NewConfigurationError(desc string, a ...interface{}) error {
	return newError(ConfigurationError, "", desc, a...)
}

// NewReferenceRasterError creates a new error stating that the reference raster cannot be used
func NewReferenceRasterError(path, desc string, a ...interface{}) error {
	return newError(ReferenceRasterError, path, desc, a...)
}

// NewResamplingError creates a new error stating that a resampling failed
func NewResamplingError(path, desc string, a ...interface{}) error {
	return newError(ResamplingError, path, desc, a...)
}

// NewArchiveError creates a new error stating that an archive cannot be extracted
func NewArchiveError(path, desc string, a ...interface{}) error {
	return newError(ArchiveError, path, desc, a...)
}

// Error implements error
func (e Error) Error() string {
	s := e.code.String() + ": " + e.desc
	if e.path != "" {
		s += " (" + e.path + ")"
	}
	return s
}

// Code returns the code of the error
func (e Error) Code() ErrorCode {
	return e.code
}

// Desc returns a description of the error
func (e Error) Desc() string {
	return e.desc
}

// Path returns the offending path, if any
func (e Error) Path() string {
	return e.path
}

// WithPath sets the offending path of err if err is an unwrapped Error without path.
// Other errors are returned unchanged.
func WithPath(err error, path string) error {
	if aerr, ok := err.(Error); ok && aerr.path == "" {
		aerr.path = path
		return aerr
	}
	return err
}

// IsError tests whether error is an Error with the given code
func IsError(err error, code ErrorCode) bool {
	var aerr Error
	return errors.As(err, &aerr) && aerr.Code() == code
}

// AsError tests whether error is an Error with the given code and returns it
func AsError(err error, code ErrorCode) (Error, bool) {
	var aerr Error
	return aerr, errors.As(err, &aerr) && aerr.Code() == code
}

// Code returns the code of the first Error found in the chain of err
func Code(err error) (ErrorCode, bool) {
	var aerr Error
	if errors.As(err, &aerr) {
		return aerr.code, true
	}
	return 0, false
}
