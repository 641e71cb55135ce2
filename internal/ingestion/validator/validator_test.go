package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name   string
		doc    ingestion.Document
		fields []string
	}{
		{"valid", ingestion.Document{ID: "d1", Title: "t", Body: "b"}, nil},
		{"body only", ingestion.Document{ID: "d1", Body: "b"}, nil},
		{"missing id", ingestion.Document{Body: "b"}, []string{"id"}},
		{"empty text", ingestion.Document{ID: "d1", Title: " ", Body: ""}, []string{"body"}},
		{"long id", ingestion.Document{ID: strings.Repeat("x", 256), Body: "b"}, []string{"id"}},
		{"long title", ingestion.Document{ID: "d1", Title: strings.Repeat("x", 1025), Body: "b"}, []string{"title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(&tt.doc)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}
