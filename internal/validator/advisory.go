// Package validator reports how well an advisory text fits the heading
// layout the section parser understands.
package validator

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"blackwatch/internal/crawler/parsers"
	"blackwatch/internal/models"
	"blackwatch/pkg/metadata"
)

const maxCVSS = 10

// DefaultRequired are the labels a usable advisory must carry.
var DefaultRequired = []parsers.Label{
	parsers.LabelTitle,
	parsers.LabelReleaseDate,
	parsers.LabelProofConcept,
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Line    int
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
}

// ValidationStats counts what the parser saw.
type ValidationStats struct {
	TotalLines      int
	Headings        int
	KnownHeadings   int
	UnknownHeadings int
	SoftHeadings    int
	LabelsFound     int
	LabelsMissing   int
}

// AdvisoryValidator checks advisory texts before they are built into records.
type AdvisoryValidator struct {
	parser   *parsers.Parser
	required []parsers.Label
}

// NewAdvisoryValidator creates a validator. A nil required list uses
// DefaultRequired.
func NewAdvisoryValidator(required []parsers.Label) *AdvisoryValidator {
	if required == nil {
		required = DefaultRequired
	}

	return &AdvisoryValidator{
		parser:   parsers.NewParser(),
		required: required,
	}
}

func (r *ValidationResult) addError(e ValidationError) {
	r.Errors = append(r.Errors, e)
	r.IsValid = false
}

// Validate parses text and reports missing labels, duplicate headings and
// field values the extractors cannot type.
func (v *AdvisoryValidator) Validate(text string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	normalized := parsers.NormalizeText(text)
	result.Stats.TotalLines = len(strings.Split(normalized, "\n"))

	if strings.TrimSpace(normalized) == "" {
		result.addError(ValidationError{Message: "document is empty"})
		return result
	}

	firstLine := map[parsers.Label]int{}

	for _, h := range v.parser.Headings(normalized) {
		result.Stats.Headings++

		if !h.Underlined {
			result.Stats.SoftHeadings++
		}

		if !h.Known {
			result.Stats.UnknownHeadings++
			continue
		}

		result.Stats.KnownHeadings++

		if line, dup := firstLine[h.Label]; dup {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("line %d: duplicate %q heading ignored, line %d wins", h.Line, h.Label, line))

			continue
		}

		firstLine[h.Label] = h.Line
	}

	sections := v.parser.ParseSections(normalized)
	result.Stats.LabelsFound = len(sections)

	for _, label := range v.required {
		raw, ok := sections.Get(label)

		switch {
		case !ok:
			result.Stats.LabelsMissing++
			result.addError(ValidationError{
				Field:   string(label),
				Message: fmt.Sprintf("required section %q not found", label),
			})
		case models.IsNone(raw):
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("line %d: section %q is empty", firstLine[label], label))
		}
	}

	v.checkFields(sections, firstLine, result)

	return result
}

func (v *AdvisoryValidator) checkFields(sections parsers.SectionMap, lines map[parsers.Label]int, result *ValidationResult) {
	if raw, ok := sections.Get(parsers.LabelReleaseDate); ok && !models.IsNone(raw) {
		if date := parsers.ExtractDate(raw); !isoDate.MatchString(date) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("line %d: release date %q is not a recognizable date", lines[parsers.LabelReleaseDate], truncate(raw, 40)))
		}
	}

	raw, ok := sections.Get(parsers.LabelCVSS)
	if !ok || models.IsNone(raw) {
		return
	}

	score := parsers.ExtractScore(raw)

	switch {
	case !score.Valid:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("line %d: CVSS section carries no number", lines[parsers.LabelCVSS]))
	case score.Value > maxCVSS:
		result.addError(ValidationError{
			Field:   string(parsers.LabelCVSS),
			Value:   score.String(),
			Line:    lines[parsers.LabelCVSS],
			Message: fmt.Sprintf("CVSS score above %d", maxCVSS),
		})
	}
}

// ValidateIntegrity checks a signed report against its metadata block.
func (v *AdvisoryValidator) ValidateIntegrity(content string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if ok, err := metadata.Verify(content); !ok {
		result.addError(ValidationError{
			Message: fmt.Sprintf("integrity check failed: %v", err),
		})
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}

	return s
}

// String returns string representation of validation result.
func (r *ValidationResult) String() string {
	status := "VALID"
	if !r.IsValid {
		status = "INVALID"
	}

	return fmt.Sprintf(
		"%s | Headings: %d (known %d, unknown %d) | Sections: %d | Missing: %d | Warnings: %d",
		status,
		r.Stats.Headings,
		r.Stats.KnownHeadings,
		r.Stats.UnknownHeadings,
		r.Stats.LabelsFound,
		r.Stats.LabelsMissing,
		len(r.Warnings),
	)
}

// PrintErrors writes validation errors in readable format.
func (r *ValidationResult) PrintErrors(w io.Writer) {
	if len(r.Errors) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation errors:")

	for _, err := range r.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "  line %d", err.Line)

			if err.Field != "" {
				fmt.Fprintf(w, " [%s]", err.Field)
			}

			fmt.Fprintf(w, ": %s\n", err.Message)

			if err.Value != "" {
				fmt.Fprintf(w, "    found: %q\n", err.Value)
			}
		} else {
			fmt.Fprintf(w, "  %s\n", err.Message)
		}
	}
}

// PrintWarnings writes validation warnings.
func (r *ValidationResult) PrintWarnings(w io.Writer) {
	if len(r.Warnings) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation warnings:")

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  %s\n", warn)
	}
}
