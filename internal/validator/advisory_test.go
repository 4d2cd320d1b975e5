package validator

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/crawler/parsers"
	"blackwatch/pkg/metadata"
)

const goodAdvisory = `Document Title:
===============
Acme CMS v4.2 - SQL Injection

Release Date:
=============
2023-03-14

Common Vulnerability Scoring System:
====================================
8.8

Vendor Status:
==============
Fixed

Proof of Concept (PoC):
=======================
GET /index.php?id=1' OR 1=1--
`

func TestValidate_Good(t *testing.T) {
	result := NewAdvisoryValidator(nil).Validate(goodAdvisory)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 5, result.Stats.Headings)
	assert.Equal(t, 4, result.Stats.KnownHeadings)
	assert.Equal(t, 1, result.Stats.UnknownHeadings)
	assert.Equal(t, 4, result.Stats.LabelsFound)
	assert.Equal(t, 0, result.Stats.LabelsMissing)
}

func TestValidate_Fixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "crawler", "parsers", "testdata", "advisory.txt"))
	require.NoError(t, err)

	result := NewAdvisoryValidator(nil).Validate(string(data))
	assert.True(t, result.IsValid, result.Errors)
	assert.Positive(t, result.Stats.UnknownHeadings)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantValid    bool
		wantErrField string
		wantWarning  string
	}{
		{
			name:      "empty document",
			text:      "  \n\t\n",
			wantValid: false,
		},
		{
			name:         "missing proof of concept",
			text:         "Document Title:\n====\nFoo\nRelease Date:\n====\n2024-01-01\n",
			wantValid:    false,
			wantErrField: string(parsers.LabelProofConcept),
		},
		{
			name:        "empty section",
			text:        "Document Title:\n====\n\nRelease Date:\n====\n2024-01-01\nPoC:\n====\nx\n",
			wantValid:   true,
			wantWarning: `section "Document Title" is empty`,
		},
		{
			name:        "duplicate heading",
			text:        "Document Title:\n====\nA\nDocument Title:\n====\nB\nRelease Date:\n====\n2024-01-01\nPoC:\n====\nx\n",
			wantValid:   true,
			wantWarning: "line 4: duplicate",
		},
		{
			name:        "unparseable date",
			text:        "Document Title:\n====\nA\nRelease Date:\n====\nsoon\nPoC:\n====\nx\n",
			wantValid:   true,
			wantWarning: "not a recognizable date",
		},
		{
			name:         "score out of range",
			text:         "Document Title:\n====\nA\nRelease Date:\n====\n2024-01-01\nCVSS:\n====\n42\nPoC:\n====\nx\n",
			wantValid:    false,
			wantErrField: string(parsers.LabelCVSS),
		},
		{
			name:        "score missing number",
			text:        "Document Title:\n====\nA\nRelease Date:\n====\n2024-01-01\nCVSS:\n====\nhigh\nPoC:\n====\nx\n",
			wantValid:   true,
			wantWarning: "CVSS section carries no number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewAdvisoryValidator(nil).Validate(tt.text)

			assert.Equal(t, tt.wantValid, result.IsValid)

			if tt.wantErrField != "" {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.wantErrField, result.Errors[0].Field)
			}

			if tt.wantWarning != "" {
				assert.Contains(t, strings.Join(result.Warnings, "\n"), tt.wantWarning)
			}
		})
	}
}

func TestValidate_CustomRequired(t *testing.T) {
	v := NewAdvisoryValidator([]parsers.Label{parsers.LabelCVE})

	result := v.Validate(goodAdvisory)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.Stats.LabelsMissing)
}

func TestValidateIntegrity(t *testing.T) {
	v := NewAdvisoryValidator(nil)

	signed := metadata.Sign("# Report", metadata.Stamp{})
	assert.True(t, v.ValidateIntegrity(signed).IsValid)

	result := v.ValidateIntegrity(strings.Replace(signed, "Report", "Edited", 1))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0].Message, "hash mismatch")
}

func TestValidationResult_Output(t *testing.T) {
	result := NewAdvisoryValidator(nil).Validate("Document Title:\n====\n\nCVSS:\n====\n99\n")

	assert.True(t, strings.HasPrefix(result.String(), "INVALID"))

	var buf bytes.Buffer
	result.PrintErrors(&buf)
	result.PrintWarnings(&buf)

	out := buf.String()
	assert.Contains(t, out, "Validation errors:")
	assert.Contains(t, out, `[CVSS]: CVSS score above 10`)
	assert.Contains(t, out, `found: "99"`)
	assert.Contains(t, out, "Validation warnings:")
}
