package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetchExhausted represents a fetch that failed on every backoff attempt
	ErrorTypeFetchExhausted ErrorType = "fetch_exhausted"
	// ErrorTypeMissingSection represents a listing page whose layout no longer matches
	ErrorTypeMissingSection ErrorType = "missing_section"
	// ErrorTypeMalformedEmbeddedData represents a detail page whose embedded JSON is absent or broken
	ErrorTypeMalformedEmbeddedData ErrorType = "malformed_embedded_data"
	// ErrorTypeMissingPrice represents a parsed listing that cannot be persisted without a price
	ErrorTypeMissingPrice ErrorType = "missing_price"
	// ErrorTypeStore represents persistence failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlError represents a crawl-specific error
type CrawlError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRecoverable returns true if the affected listing can be dropped and the crawl continued
func (e *CrawlError) IsRecoverable() bool {
	switch e.Type {
	case ErrorTypeFetchExhausted, ErrorTypeMalformedEmbeddedData, ErrorTypeMissingPrice:
		return true
	default:
		return false
	}
}

// New creates a new CrawlError
func New(errType ErrorType, source, message string, err error) *CrawlError {
	return &CrawlError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetchExhausted creates a new fetch exhausted error
func NewFetchExhausted(url string, attempts int, err error) *CrawlError {
	message := fmt.Sprintf("gave up after %d attempts", attempts)
	return New(ErrorTypeFetchExhausted, url, message, err)
}

// NewMissingSection creates a new missing section error
func NewMissingSection(url, section string) *CrawlError {
	return New(ErrorTypeMissingSection, url, "missing section "+section, nil)
}

// NewMalformedEmbeddedData creates a new malformed embedded data error
func NewMalformedEmbeddedData(url, message string, err error) *CrawlError {
	return New(ErrorTypeMalformedEmbeddedData, url, message, err)
}

// NewMissingPrice creates a new validation error for a listing without a price
func NewMissingPrice(url string) *CrawlError {
	return New(ErrorTypeMissingPrice, url, "listing has no price", nil)
}

// NewStore creates a new store error
func NewStore(message string, err error) *CrawlError {
	return New(ErrorTypeStore, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first CrawlError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var ce *CrawlError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// IsRecoverable reports whether err wraps a CrawlError that only costs one listing
func IsRecoverable(err error) bool {
	var ce *CrawlError
	return stderrors.As(err, &ce) && ce.IsRecoverable()
}

// IsType reports whether err wraps a CrawlError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}
