package registry

import "fmt"

// ParseError reports a registry document that could not be decoded. The whole run is aborted.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse registry document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports a failed download of the registry document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
