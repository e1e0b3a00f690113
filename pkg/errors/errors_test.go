package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlErrorMessage(t *testing.T) {
	err := NewFetchExhausted("https://krisha.kz/a/show/1", 5, stderrors.New("connection refused"))
	assert.Equal(t, "[fetch_exhausted] https://krisha.kz/a/show/1: gave up after 5 attempts - connection refused", err.Error())

	err = NewMissingSection("https://krisha.kz/prodazha/kvartiry/", "div.a-search-subtitle")
	assert.Equal(t, "[missing_section] https://krisha.kz/prodazha/kvartiry/: missing section div.a-search-subtitle", err.Error())
}

func TestCrawlErrorClassification(t *testing.T) {
	tests := []struct {
		err         *CrawlError
		recoverable bool
	}{
		{NewFetchExhausted("u", 5, nil), true},
		{NewMissingSection("u", "s"), false},
		{NewMalformedEmbeddedData("u", "m", nil), true},
		{NewMissingPrice("u"), true},
		{NewStore("m", nil), false},
		{NewConfiguration("m", nil), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.recoverable, tt.err.IsRecoverable())
			assert.Equal(t, tt.recoverable, IsRecoverable(fmt.Errorf("page 2: %w", tt.err)))
		})
	}

	assert.False(t, IsRecoverable(stderrors.New("plain")))
	assert.False(t, IsRecoverable(nil))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	inner := stderrors.New("deadlock detected")
	err := fmt.Errorf("persist page 3: %w", NewStore("insert batch", inner))

	assert.True(t, IsType(err, ErrorTypeStore))
	assert.False(t, IsType(err, ErrorTypeFetchExhausted))
	assert.True(t, stderrors.Is(err, inner))
	assert.Equal(t, ErrorTypeStore, TypeOf(err))

	assert.False(t, IsType(nil, ErrorTypeStore))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}
