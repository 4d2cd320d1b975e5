package dedup

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"blackwatch/internal/models"
)

// KeyKind namespaces cluster keys so values of different kinds never collide.
type KeyKind string

// Cluster key kinds, in order of preference.
const (
	KindCVE   KeyKind = "cve"
	KindTitle KeyKind = "title"
	KindURL   KeyKind = "url"
)

// Key identifies the advisory a record is believed to describe.
type Key struct {
	Kind  KeyKind
	Value string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Value
}

var (
	cvePattern       = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)
	bracketedPattern = regexp.MustCompile(`[\[(].*?[\])]`)
	slashRunPattern  = regexp.MustCompile(`/+`)
	spaceRunPattern  = regexp.MustCompile(`\s+`)
)

// CanonicalURL builds https://host/path with a lowercased host and
// redundant slashes collapsed.
func CanonicalURL(host, path string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	path = slashRunPattern.ReplaceAllString("/"+strings.TrimSpace(path), "/")

	return "https://" + host + path
}

// NormalizeTitle folds a title for comparison: compatibility forms are
// unified, text is lowercased, bracketed and parenthesised fragments are
// removed and whitespace is collapsed. The sentinel normalizes to "".
func NormalizeTitle(title string) string {
	if models.IsNone(strings.TrimSpace(title)) {
		return ""
	}

	t := strings.ToLower(norm.NFKC.String(title))
	t = bracketedPattern.ReplaceAllString(t, "")
	t = spaceRunPattern.ReplaceAllString(t, " ")

	return strings.TrimSpace(t)
}

// CVEs returns the distinct, upper-cased CVE ids in text, sorted.
func CVEs(text string) []string {
	set := make(map[string]struct{})
	for _, m := range cvePattern.FindAllString(text, -1) {
		set[strings.ToUpper(m)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

// ClusterKey derives the identity of rec: its CVE set when the title or URL
// mentions one, else its normalized title, else its canonical URL.
func ClusterKey(rec *models.CandidateRecord) Key {
	url := CanonicalURL(rec.Host, rec.Path)

	title := rec.Title
	if models.IsNone(title) {
		title = ""
	}

	if ids := CVEs(title + " " + url); len(ids) > 0 {
		return Key{Kind: KindCVE, Value: strings.Join(ids, ",")}
	}

	if nt := NormalizeTitle(rec.Title); nt != "" {
		return Key{Kind: KindTitle, Value: nt}
	}

	return Key{Kind: KindURL, Value: url}
}
