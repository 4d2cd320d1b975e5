package dedup

import (
	"sort"
	"strings"

	"blackwatch/internal/models"
)

const (
	bodySeparator   = "\n\n---\n\n"
	referencesTitle = "References:"
)

var severityRank = map[string]int{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
}

// SeverityRank orders severities; unknown or empty values rank 0.
func SeverityRank(severity string) int {
	return severityRank[strings.ToLower(strings.TrimSpace(severity))]
}

// DedupeLines keeps the first occurrence of every distinct trimmed line,
// preserving order and dropping blank lines.
func DedupeLines(text string) string {
	seen := make(map[string]struct{})

	var out []string

	for _, line := range strings.Split(text, "\n") {
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}

		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

func articleLen(rec *models.CandidateRecord) int {
	if models.IsNone(rec.Article) {
		return 0
	}

	return len(rec.Article)
}

func dateKey(rec *models.CandidateRecord) string {
	if models.IsNone(rec.UploadDate) {
		return ""
	}

	return rec.UploadDate
}

// better reports whether a should represent a cluster instead of b. Dates
// are compared as strings.
func better(a, b *models.CandidateRecord) bool {
	if la, lb := articleLen(a), articleLen(b); la != lb {
		return la > lb
	}

	if da, db := dateKey(a), dateKey(b); da != db {
		return da > db
	}

	return len(CanonicalURL(a.Host, a.Path)) < len(CanonicalURL(b.Host, b.Path))
}

// representative returns the index of the member that wins the ranking;
// ties go to the earliest member.
func representative(members []models.CandidateRecord) int {
	best := 0
	for i := 1; i < len(members); i++ {
		if better(&members[i], &members[best]) {
			best = i
		}
	}

	return best
}

// merge folds every member of a cluster into a copy of its representative.
func merge(members []models.CandidateRecord) models.CandidateRecord {
	if len(members) == 1 {
		return members[0]
	}

	repIdx := representative(members)
	rep := members[repIdx]

	order := make([]int, 0, len(members))
	order = append(order, repIdx)

	for i := range members {
		if i != repIdx {
			order = append(order, i)
		}
	}

	var (
		bodies []string
		links  []string
		tags   = make(map[string]struct{})
	)

	seenLinks := make(map[string]struct{})

	for _, i := range order {
		m := &members[i]

		if body := strings.TrimSpace(m.Article); !models.IsNone(body) {
			bodies = append(bodies, body)
		}

		if strings.TrimSpace(m.Host) != "" {
			u := CanonicalURL(m.Host, m.Path)
			if _, dup := seenLinks[u]; !dup {
				seenLinks[u] = struct{}{}
				links = append(links, u)
			}
		}

		for _, tag := range m.Tags {
			tags[tag] = struct{}{}
		}

		if i == repIdx {
			continue
		}

		if SeverityRank(m.Severity) > SeverityRank(rep.Severity) {
			rep.Severity = m.Severity
		}

		if models.IsNoneList(rep.CVEIDs) && !models.IsNoneList(m.CVEIDs) {
			rep.CVEIDs = append([]string(nil), m.CVEIDs...)
		}

		if !rep.CVSS.Valid && m.CVSS.Valid {
			rep.CVSS = m.CVSS
		}

		if d := dateKey(m); d != "" && d > dateKey(&rep) {
			rep.UploadDate = d
		}
	}

	rep.Article = mergeArticle(bodies, links)

	if len(tags) > 0 {
		rep.Tags = make([]string, 0, len(tags))
		for tag := range tags {
			rep.Tags = append(rep.Tags, tag)
		}

		sort.Strings(rep.Tags)
	}

	return rep
}

func mergeArticle(bodies, links []string) string {
	article := DedupeLines(strings.Join(bodies, bodySeparator))

	if len(links) > 0 {
		var sb strings.Builder

		if article != "" {
			sb.WriteString(article)
			sb.WriteString("\n\n---\n")
		}

		sb.WriteString(referencesTitle)

		for _, u := range links {
			sb.WriteString("\n- ")
			sb.WriteString(u)
		}

		article = sb.String()
	}

	if article == "" {
		return models.None
	}

	return article
}
