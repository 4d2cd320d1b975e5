package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringHelper(t *testing.T) {
	s := NewStringHelper()

	assert.Equal(t, "a b c", s.NormalizeWhitespace("  a \t b\n\nc "))
	assert.Equal(t, "héll...", s.TruncateString("héllo wörld", 4))
	assert.Equal(t, "short", s.TruncateString("short", 10))
}

func TestHTTPHelper_IsValidURL(t *testing.T) {
	h := NewHTTPHelper("")

	tests := []struct {
		raw  string
		want bool
	}{
		{"https://api.example.com", true},
		{"http://localhost:8000/data", true},
		{"ftp://example.com", false},
		{"api.example.com", false},
		{"https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsValidURL(tt.raw))
		})
	}
}

func TestHTTPHelper_BuildHeaders(t *testing.T) {
	h := NewHTTPHelper("blackwatch/1.0")

	headers := h.BuildHeaders(map[string]string{"X-Session-Id": "abc"})

	assert.Equal(t, "blackwatch/1.0", headers.Get("User-Agent"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "abc", headers.Get("X-Session-Id"))
}
