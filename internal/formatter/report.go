package formatter

import (
	"fmt"
	"sort"
	"strings"

	"blackwatch/internal/dedup"
	"blackwatch/internal/models"
	"blackwatch/pkg/metadata"
	"blackwatch/pkg/utils"
)

const (
	defaultTitleWidth = 60
	unranked          = "unranked"
)

// ReportOptions controls RenderReport.
type ReportOptions struct {
	Title      string
	Generator  *models.Generator
	Stats      *dedup.Stats
	TitleWidth int
	Validated  bool
}

// RenderReport writes a summary table, one row per record, and a detail
// section per record, then aligns and signs the result.
func RenderReport(records []models.CandidateRecord, opts ReportOptions) string {
	strs := utils.NewStringHelper()

	title := opts.Title
	if title == "" {
		title = "Vulnerability Report"
	}

	width := opts.TitleWidth
	if width < 1 {
		width = defaultTitleWidth
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)

	if opts.Generator != nil {
		fmt.Fprintf(&b, "Generated by %s %s.\n\n", opts.Generator.Name, opts.Generator.Version)
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| Records | %d |\n", len(records))

	if s := opts.Stats; s != nil {
		fmt.Fprintf(&b, "| Input | %d |\n| Clusters | %d |\n| Merged | %d |\n| Dropped | %d |\n",
			s.Input, s.Clusters, s.Merged, s.Dropped)
	}

	for _, sev := range severityCounts(records) {
		fmt.Fprintf(&b, "| Severity %s | %d |\n", sev.name, sev.count)
	}

	b.WriteString("\n## Records\n\n")
	b.WriteString("| # | Title | CVE | CVSS | Severity | Date | Source |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")

	for i := range records {
		rec := &records[i]
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			cell(strs.TruncateString(strs.NormalizeWhitespace(rec.Title), width)),
			cell(strings.Join(rec.CVEIDs, ", ")),
			rec.CVSS.String(),
			severityName(rec.Severity),
			cell(rec.UploadDate),
			cell(dedup.CanonicalURL(rec.Host, rec.Path)),
		)
	}

	for i := range records {
		writeDetail(&b, i+1, &records[i], strs)
	}

	stamp := metadata.Stamp{Validated: opts.Validated}
	if opts.Generator != nil {
		stamp.Generator = opts.Generator.Name
		stamp.Version = opts.Generator.Version
	}

	return FormatMarkdown(b.String(), stamp)
}

func writeDetail(b *strings.Builder, n int, rec *models.CandidateRecord, strs *utils.StringHelper) {
	fmt.Fprintf(b, "\n## %d. %s\n\n", n, strs.NormalizeWhitespace(rec.Title))
	fmt.Fprintf(b, "- Source: %s\n", dedup.CanonicalURL(rec.Host, rec.Path))
	fmt.Fprintf(b, "- Vulnerability class: %s\n", joinList(rec.VulnerabilityClass))
	fmt.Fprintf(b, "- Affected products: %s\n", joinList(rec.AffectedProducts))
	fmt.Fprintf(b, "- Exploitation technique: %s\n", joinList(rec.ExploitationTechnique))

	if len(rec.Tags) > 0 {
		fmt.Fprintf(b, "- Tags: %s\n", strings.Join(rec.Tags, ", "))
	}

	fmt.Fprintf(b, "- Hash: `%s`\n", rec.DedupHash)

	if !models.IsNoneList(rec.Ref) {
		b.WriteString("\nReferences:\n\n")

		for _, ref := range rec.Ref {
			fmt.Fprintf(b, "- %s\n", ref)
		}
	}
}

type severityCount struct {
	name  string
	count int
}

// severityCounts lists the severities present, highest rank first.
func severityCounts(records []models.CandidateRecord) []severityCount {
	counts := map[string]int{}
	for i := range records {
		counts[severityName(records[i].Severity)]++
	}

	out := make([]severityCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, severityCount{name: name, count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := dedup.SeverityRank(out[i].name), dedup.SeverityRank(out[j].name)
		if ri != rj {
			return ri > rj
		}

		return out[i].name < out[j].name
	})

	return out
}

func severityName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return unranked
	}

	return s
}

func joinList(list []string) string {
	if models.IsNoneList(list) {
		return models.None
	}

	return strings.Join(list, ", ")
}

// cell escapes pipes and flattens newlines for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")

	if s == "" {
		return models.None
	}

	return s
}
