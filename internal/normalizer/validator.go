package normalizer

import (
	"errors"
	"strings"

	"blackwatch/internal/models"
)

// Validation errors.
var (
	ErrInvalidDataType = errors.New("invalid data type: expected models.RawDocument")
	ErrMissingHost     = errors.New("raw document is missing its host")
)

// Validator checks the source identity of raw documents. Text content is
// never validated: empty text still yields a sentinel record.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that data is a raw document with a host, returning the
// document by value.
func (v *Validator) Validate(data interface{}) (models.RawDocument, error) {
	var doc models.RawDocument

	switch d := data.(type) {
	case models.RawDocument:
		doc = d
	case *models.RawDocument:
		if d == nil {
			return doc, ErrInvalidDataType
		}

		doc = *d
	default:
		return doc, ErrInvalidDataType
	}

	if strings.TrimSpace(doc.Host) == "" {
		return doc, ErrMissingHost
	}

	return doc, nil
}
