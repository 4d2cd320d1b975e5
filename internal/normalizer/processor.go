// Package normalizer turns raw advisory documents into candidate records.
package normalizer

import (
	"fmt"

	"github.com/google/uuid"

	"blackwatch/internal/models"
)

// Processor validates raw documents and builds their records.
type Processor struct {
	validator *Validator
	builder   *Builder
	clientID  string
}

// NewProcessor creates a processor with a fresh run client id.
func NewProcessor(generator *models.Generator) *Processor {
	return NewProcessorWithClientID(generator, uuid.NewString())
}

// NewProcessorWithClientID creates a processor that stamps clientID on
// documents that arrive without one.
func NewProcessorWithClientID(generator *models.Generator, clientID string) *Processor {
	return &Processor{
		validator: NewValidator(),
		builder:   NewBuilder(generator),
		clientID:  clientID,
	}
}

// ClientID returns the run client id.
func (p *Processor) ClientID() string {
	return p.clientID
}

// Process validates rawData and builds its candidate record.
func (p *Processor) Process(rawData interface{}) (models.CandidateRecord, error) {
	doc, err := p.validator.Validate(rawData)
	if err != nil {
		return models.CandidateRecord{}, fmt.Errorf("validation failed: %w", err)
	}

	if doc.ClientID == "" {
		doc.ClientID = p.clientID
	}

	return p.builder.Build(doc), nil
}
