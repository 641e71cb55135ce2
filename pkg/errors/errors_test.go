package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"invalid", Invalid("topN must be positive, got %d", 0), http.StatusBadRequest},
		{"wrapped invalid", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"exists", ErrDocumentExists, http.StatusConflict},
		{"index io", IndexIO("postings", io.ErrUnexpectedEOF), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestIndexIOKeepsCause(t *testing.T) {
	err := IndexIO("doc length", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrIndexIO)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "doc length")

	assert.Nil(t, IndexIO("noop", nil))
	assert.Same(t, err, IndexIO("outer", err))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Invalid("alpha %v out of range", 1.5)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: alpha 1.5 out of range", err.Error())
}
