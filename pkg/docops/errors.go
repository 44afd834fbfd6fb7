package docops

import "errors"

var (
	// ErrNoInput is returned when a batch transform receives no files
	ErrNoInput = errors.New("no input files")

	// ErrMissingSource is returned when an input file is absent or empty
	ErrMissingSource = errors.New("source file is missing or empty")

	// ErrConversion wraps every failure of the presentation converter
	ErrConversion = errors.New("presentation conversion failed")

	// ErrConverterUnavailable is returned when no converter binary is found
	ErrConverterUnavailable = errors.New("converter is not available")

	// ErrNoOutput is returned when the converter exits without producing a PDF
	ErrNoOutput = errors.New("converter produced no output")

	// ErrEmptyParameter is returned when a watermark text or password is blank
	ErrEmptyParameter = errors.New("parameter is empty")
)
