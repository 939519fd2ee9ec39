package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat matches both UnsupportedFormatError and LegacyFormatError.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	ErrJobNotFound  = errors.New("job not found")
	ErrJobFinalized = errors.New("job already finished")
	ErrPipelineBusy = errors.New("pipeline is at capacity")
)

// UnsupportedFormatError is returned for any extension other than .pdf, .docx or .doc.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "file has no extension: upload a .pdf or .docx file"
	}
	return fmt.Sprintf("unsupported file format %q: upload a .pdf or .docx file", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// LegacyFormatError is returned for binary Word 97-2003 documents.
type LegacyFormatError struct{}

func (e *LegacyFormatError) Error() string {
	return "legacy .doc format is not supported: save the file as .docx and upload it again"
}

func (e *LegacyFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// AnalysisError reports a model call that failed or returned a report that
// still did not validate after the repair request. It never carries the raw
// model output.
type AnalysisError struct {
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed during %s: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
