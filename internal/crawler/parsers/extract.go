package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"blackwatch/internal/models"
)

var (
	numericDatePattern = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)
	listSplitPattern   = regexp.MustCompile(`[,;\n]+`)
	scorePattern       = regexp.MustCompile(`\d+(?:\.\d+)?`)
	urlPattern         = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')\]}]+`)
	articleStopPattern = regexp.MustCompile(`(?i)^(?:Security\s*Risk|Credits\s*&\s*Authors|Disclaimer\s*&\s*Information|Domains|References(?:\s*\(Source\))?|Copyright)\s*:?`)
)

const urlTrailingChars = "),.;:]}'"

// ExtractText returns the trimmed value, or the sentinel when empty.
func ExtractText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.None
	}

	return s
}

// ExtractDate normalizes a date to YYYY-MM-DD. A numeric year-first date is
// preferred, then a fuzzy parse, then the trimmed raw text.
func ExtractDate(raw string) string {
	s := strings.TrimSpace(raw)
	if models.IsNone(s) {
		return models.None
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])

		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}

	if t, ok := fuzzyDate(s); ok {
		return t.Format("2006-01-02")
	}

	return s
}

// fuzzyDate tries the whole text, each line, then sliding token windows.
func fuzzyDate(s string) (time.Time, bool) {
	candidates := []string{s}
	candidates = append(candidates, strings.Split(s, "\n")...)

	tokens := strings.Fields(s)
	for _, size := range []int{3, 2} {
		for i := 0; i+size <= len(tokens); i++ {
			candidates = append(candidates, strings.Join(tokens[i:i+size], " "))
		}
	}

	for _, c := range candidates {
		c = strings.Trim(strings.TrimSpace(c), ",.;")
		if c == "" {
			continue
		}

		if t, ok := parseAny(c); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

func parseAny(s string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseAny(s)
	if err != nil || parsed.Year() < 1970 {
		return time.Time{}, false
	}

	return parsed, true
}

// ExtractList splits on commas, semicolons and newlines, trimming and
// dropping empty items.
func ExtractList(raw string) []string {
	if models.IsNone(strings.TrimSpace(raw)) {
		return models.NoneList()
	}

	var out []string

	for _, part := range listSplitPattern.Split(raw, -1) {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}

	if len(out) == 0 {
		return models.NoneList()
	}

	return out
}

// ExtractScore returns the first decimal number in raw.
func ExtractScore(raw string) models.Score {
	m := scorePattern.FindString(raw)
	if m == "" {
		return models.Score{}
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return models.Score{}
	}

	return models.NewScore(v)
}

// ExtractURLs returns the distinct http(s) URLs in raw, in first-seen order.
func ExtractURLs(raw string) []string {
	seen := make(map[string]struct{})

	var out []string

	for _, m := range urlPattern.FindAllString(raw, -1) {
		u := strings.TrimRight(m, urlTrailingChars)
		if u == "" {
			continue
		}

		if _, dup := seen[u]; dup {
			continue
		}

		seen[u] = struct{}{}
		out = append(out, u)
	}

	if len(out) == 0 {
		return models.NoneList()
	}

	return out
}

// ExtractArticle cuts the section at the first trailer heading such as
// "Credits & Authors:" and right-trims the remainder.
func ExtractArticle(raw string) string {
	if models.IsNone(strings.TrimSpace(raw)) {
		return models.None
	}

	lines := strings.Split(raw, "\n")
	for i := 1; i < len(lines); i++ {
		if articleStopPattern.MatchString(lines[i]) {
			lines = lines[:i]
			break
		}
	}

	body := strings.TrimRight(strings.Join(lines, "\n"), " \t\n")
	if strings.TrimSpace(body) == "" {
		return models.None
	}

	return body
}
