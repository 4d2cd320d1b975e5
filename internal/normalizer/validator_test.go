package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/models"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	doc, err := v.Validate(models.RawDocument{Host: "h.example", Path: "/1"})
	require.NoError(t, err)
	assert.Equal(t, "/1", doc.Path)

	doc, err = v.Validate(&models.RawDocument{Host: "h.example", Text: ""})
	require.NoError(t, err)
	assert.Equal(t, "h.example", doc.Host)
}

func TestValidator_Validate_Errors(t *testing.T) {
	v := NewValidator()

	var nilDoc *models.RawDocument

	tests := []struct {
		name    string
		data    interface{}
		wantErr error
	}{
		{name: "nil input", data: nil, wantErr: ErrInvalidDataType},
		{name: "wrong type", data: "string data", wantErr: ErrInvalidDataType},
		{name: "nil pointer", data: nilDoc, wantErr: ErrInvalidDataType},
		{name: "missing host", data: models.RawDocument{Path: "/1", Text: "x"}, wantErr: ErrMissingHost},
		{name: "blank host", data: &models.RawDocument{Host: "  "}, wantErr: ErrMissingHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
