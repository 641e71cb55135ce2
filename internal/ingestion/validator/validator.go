// Package validator checks documents before they are published or indexed
// and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
)

const (
	maxIDLength    = 255
	maxTitleLength = 1024
	maxBodyLength  = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateDocument requires an id and some text, and bounds field sizes.
func ValidateDocument(doc *ingestion.Document) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		errs["id"] = "id is required"
	} else if len(id) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	if len(doc.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(doc.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if strings.TrimSpace(doc.Title) == "" && strings.TrimSpace(doc.Body) == "" {
		errs["body"] = "title or body must be non-empty"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
