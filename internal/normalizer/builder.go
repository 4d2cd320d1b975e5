package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"blackwatch/internal/crawler/parsers"
	"blackwatch/internal/models"
)

// Builder assembles candidate records from raw advisory text.
type Builder struct {
	parser    *parsers.Parser
	generator *models.Generator
}

// NewBuilder creates a builder over the default label table. A nil
// generator leaves records unstamped.
func NewBuilder(generator *models.Generator) *Builder {
	return &Builder{
		parser:    parsers.NewParser(),
		generator: generator,
	}
}

// Build parses doc and returns its candidate record. It never fails:
// anything that cannot be extracted is stored as the sentinel.
func (b *Builder) Build(doc models.RawDocument) models.CandidateRecord {
	sections := b.parser.ParseSections(doc.Text)

	refRaw := sections.Value(parsers.LabelReferences)
	if models.IsNone(strings.TrimSpace(refRaw)) {
		if fallback, ok := parsers.ReferencesFallback(doc.Text); ok {
			refRaw = fallback
		}
	}

	rec := models.CandidateRecord{
		ClientID:              doc.ClientID,
		Host:                  doc.Host,
		Path:                  doc.Path,
		Title:                 parsers.ExtractText(sections.Value(parsers.LabelTitle)),
		Author:                models.None,
		UploadDate:            parsers.ExtractDate(sections.Value(parsers.LabelReleaseDate)),
		CVEIDs:                parsers.ExtractList(sections.Value(parsers.LabelCVE)),
		CVSS:                  parsers.ExtractScore(sections.Value(parsers.LabelCVSS)),
		VulnerabilityClass:    parsers.ExtractList(sections.Value(parsers.LabelVulnClass)),
		AffectedProducts:      parsers.ExtractList(sections.Value(parsers.LabelProducts)),
		ExploitationTechnique: parsers.ExtractList(sections.Value(parsers.LabelTechnique)),
		Article:               parsers.ExtractArticle(sections.Value(parsers.LabelProofConcept)),
		Ref:                   parsers.ExtractURLs(refRaw),
	}

	if b.generator != nil {
		gen := *b.generator
		rec.Generator = &gen
	}

	rec.DedupHash = DedupHash(&rec)

	return rec
}

// DedupHash fingerprints the normalized content fields of rec. It is stable
// within a run only; it is not a cross-run identity.
func DedupHash(rec *models.CandidateRecord) string {
	material := strings.Join([]string{
		rec.Title,
		rec.UploadDate,
		rec.CVSS.String(),
		strings.Join(orNone(rec.VulnerabilityClass), ","),
		strings.Join(orNone(rec.ExploitationTechnique), ","),
		rec.Article,
		strings.Join(orNone(rec.Ref), ","),
	}, "|")

	sum := sha256.Sum256([]byte(material))

	return hex.EncodeToString(sum[:])
}

func orNone(list []string) []string {
	if len(list) == 0 {
		return models.NoneList()
	}

	return list
}
