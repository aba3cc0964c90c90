package materialize

import (
	"fmt"
)

// DownloadError is returned when a result URL cannot be fetched
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return "Failed to download image from URL: " + e.URL
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// UnexpectedResultFormatError is returned for results that are neither a
// readable image file, an image URL, nor image data
type UnexpectedResultFormatError struct {
	Type  string
	Value string
	Err   error
}

func (e *UnexpectedResultFormatError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("unexpected result format (%s): %v", e.Type, e.Err)
	case e.Value != "":
		return fmt.Sprintf("unexpected result format (%s): %q", e.Type, e.Value)
	default:
		return fmt.Sprintf("unexpected result format (%s)", e.Type)
	}
}

func (e *UnexpectedResultFormatError) Unwrap() error {
	return e.Err
}
