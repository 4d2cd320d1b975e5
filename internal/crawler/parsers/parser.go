// Package parsers turns noisy advisory text into labelled sections and
// typed field values.
package parsers

import (
	"regexp"
	"strings"

	"blackwatch/internal/models"
)

// Label names one of the fixed advisory sections.
type Label string

// Section labels, in matching order.
const (
	LabelTitle        Label = "Document Title"
	LabelReleaseDate  Label = "Release Date"
	LabelCVSS         Label = "CVSS"
	LabelVulnClass    Label = "Vulnerability Class"
	LabelProducts     Label = "Affected Products"
	LabelTechnique    Label = "Exploitation Technique"
	LabelProofConcept Label = "Proof of Concept"
	LabelCVE          Label = "CVE"
	LabelReferences   Label = "References"
)

// LabelMatcher pairs a label with the pattern that recognises its heading.
type LabelMatcher struct {
	Label   Label
	Pattern string
}

// DefaultLabels is the ordered label table. Order is part of the contract:
// when a heading matches several entries the earliest one wins.
var DefaultLabels = []LabelMatcher{
	{Label: LabelTitle, Pattern: `Document\s*Title`},
	{Label: LabelReleaseDate, Pattern: `Release\s*Date`},
	{Label: LabelCVSS, Pattern: `Common\s+Vulnerability\s+Scoring\s+System|CVSS`},
	{Label: LabelVulnClass, Pattern: `Vulnerability\s*Class`},
	{Label: LabelProducts, Pattern: `Affected\s+Product\(s\)|Affected\s+Products?`},
	{Label: LabelTechnique, Pattern: `Exploitation\s*Technique`},
	{Label: LabelProofConcept, Pattern: `Proof\s+of\s+Concept\s*\(PoC\)|^PoC$`},
	{Label: LabelCVE, Pattern: `CVE(?:\s*ID)?s?`},
	{Label: LabelReferences, Pattern: `References(?:\s*\(Source\))?`},
}

// SectionMap holds the raw text found under each label. A label that never
// appeared as a heading has no entry.
type SectionMap map[Label]string

// Get returns the raw text for label and whether the heading was seen.
func (m SectionMap) Get(label Label) (string, bool) {
	v, ok := m[label]
	return v, ok
}

// Value returns the raw text for label, or the sentinel when absent.
func (m SectionMap) Value(label Label) string {
	if v, ok := m[label]; ok {
		return v
	}

	return models.None
}

type compiledLabel struct {
	label  Label
	exact  *regexp.Regexp
	search *regexp.Regexp
}

// Parser detects headings and splits advisory text into sections.
type Parser struct {
	labels []compiledLabel
}

// NewParser creates a parser over DefaultLabels.
func NewParser() *Parser {
	return NewParserWithLabels(DefaultLabels)
}

// NewParserWithLabels creates a parser over a custom ordered label table.
// Patterns are matched case-insensitively and must compile.
func NewParserWithLabels(table []LabelMatcher) *Parser {
	p := &Parser{labels: make([]compiledLabel, 0, len(table))}
	for _, lm := range table {
		p.labels = append(p.labels, compiledLabel{
			label:  lm.Label,
			exact:  regexp.MustCompile(`(?i)^(?:` + lm.Pattern + `)$`),
			search: regexp.MustCompile(`(?i)` + lm.Pattern),
		})
	}

	return p
}

// NormalizeText unifies line endings and expands tabs to four spaces.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return strings.ReplaceAll(text, "\t", "    ")
}

// minSeparatorLen is the shortest run that counts as an underline.
const minSeparatorLen = 3

// IsSeparatorLine reports whether line is an underline: a run of at least
// three "=" or three "-" characters, such as "=====" or "-----". Lone
// punctuation like "}" or "..." is content.
func IsSeparatorLine(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < minSeparatorLen {
		return false
	}

	first := s[0]
	if first != '=' && first != '-' {
		return false
	}

	return strings.Count(s, string(first)) == len(s)
}

func isSoftHeading(line string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}

func isHeading(lines []string, i int) bool {
	return i < len(lines)-1 && isSoftHeading(lines[i]) && IsSeparatorLine(lines[i+1])
}

// MatchLabel maps heading text to a label: an exact match against any entry
// is preferred, otherwise the first entry found as a substring wins.
func (p *Parser) MatchLabel(heading string) (Label, bool) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(heading), ":"))
	if raw == "" {
		return "", false
	}

	for _, cl := range p.labels {
		if cl.exact.MatchString(raw) {
			return cl.label, true
		}
	}

	for _, cl := range p.labels {
		if cl.search.MatchString(raw) {
			return cl.label, true
		}
	}

	return "", false
}

// parseState is the scan state: active is empty while scanning.
type parseState struct {
	active Label
	open   bool
	buffer []string
	result SectionMap
}

func (s *parseState) start(label Label) {
	s.active = label
	s.open = true
	s.buffer = s.buffer[:0]
}

func (s *parseState) flush() {
	if !s.open {
		return
	}

	if _, seen := s.result[s.active]; !seen {
		s.result[s.active] = joinSection(s.buffer)
	}

	s.active = ""
	s.open = false
	s.buffer = s.buffer[:0]
}

func (s *parseState) add(line string) {
	if IsSeparatorLine(line) {
		s.buffer = s.buffer[:0]
		return
	}

	s.buffer = append(s.buffer, line)
}

func joinSection(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	if start == end {
		return models.None
	}

	return strings.Join(lines[start:end], "\n")
}

// ParseSections runs the heading state machine over text. The first
// occurrence of a label wins; later headings with that label are skipped.
func (p *Parser) ParseSections(text string) SectionMap {
	lines := strings.Split(NormalizeText(text), "\n")
	st := &parseState{result: make(SectionMap)}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		underlined := isHeading(lines, i)

		if !underlined && !isSoftHeading(line) {
			if st.open {
				st.add(line)
			}

			continue
		}

		label, ok := p.MatchLabel(line)

		switch {
		case ok:
			st.flush()
			st.start(label)

			if underlined {
				i++
			}
		case underlined:
			// An unknown underlined heading closes the section.
			st.flush()
			i++
		case st.open:
			st.add(line)
		}
	}

	st.flush()

	return st.result
}

// Heading is one heading line found in a document.
type Heading struct {
	Line       int
	Text       string
	Label      Label
	Known      bool
	Underlined bool
}

// Headings lists every underlined and soft heading in text with its
// 1-based line number and matched label.
func (p *Parser) Headings(text string) []Heading {
	lines := strings.Split(NormalizeText(text), "\n")

	var out []Heading

	for i := 0; i < len(lines); i++ {
		underlined := isHeading(lines, i)
		if !underlined && !isSoftHeading(lines[i]) {
			continue
		}

		label, ok := p.MatchLabel(lines[i])
		out = append(out, Heading{
			Line:       i + 1,
			Text:       strings.TrimSpace(lines[i]),
			Label:      label,
			Known:      ok,
			Underlined: underlined,
		})

		if underlined {
			i++
		}
	}

	return out
}

var (
	referencesHeadingPattern = regexp.MustCompile(`(?i)^\s*References(?:\s*\(Source\))?\s*:?\s*$`)
	referencesStopPattern    = regexp.MustCompile(`(?i)^\s*(?:Release\s*Date|Document\s*Title|Vulnerability\s+Class|Affected\s+Product|Exploitation\s*Technique|Common\s+Vulnerability|Credits|Security\s*Risk|Disclaimer|Copyright)\b`)
)

// ReferencesFallback scans the full text for a References block when the
// state machine did not capture one. It returns false when none is found.
func ReferencesFallback(text string) (string, bool) {
	lines := strings.Split(NormalizeText(text), "\n")

	for i, line := range lines {
		if !referencesHeadingPattern.MatchString(line) {
			continue
		}

		j := i + 1
		if j < len(lines) && IsSeparatorLine(lines[j]) {
			j++
		}

		var body []string

		for ; j < len(lines); j++ {
			if referencesStopPattern.MatchString(lines[j]) {
				break
			}

			body = append(body, lines[j])
		}

		block := strings.TrimSpace(strings.Join(body, "\n"))
		if block == "" {
			return "", false
		}

		return block, true
	}

	return "", false
}
