package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blackwatch/internal/models"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		host, path, want string
	}{
		{"WWW.Example.com", "/a//b", "https://www.example.com/a/b"},
		{" example.com ", "get.php?id=1", "https://example.com/get.php?id=1"},
		{"example.com", "", "https://example.com/"},
		{"example.com", "///x", "https://example.com/x"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalURL(tt.host, tt.path))
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SQL Injection in Foo (v1.2)", "sql injection in foo"},
		{"  sql   injection\tin foo ", "sql injection in foo"},
		{"[Exploit] Bar (x) Baz", "bar baz"},
		{"ＦＵＬＬＷＩＤＴＨ Title", "fullwidth title"},
		{models.None, ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTitle(tt.in), "title %q", tt.in)
	}
}

func TestClusterKey(t *testing.T) {
	tests := []struct {
		name string
		rec  models.CandidateRecord
		want Key
	}{
		{
			name: "sorted distinct cves",
			rec:  models.CandidateRecord{Host: "h", Path: "/CVE-2020-0002", Title: "cve-2020-0001 and CVE-2020-0002"},
			want: Key{Kind: KindCVE, Value: "CVE-2020-0001,CVE-2020-0002"},
		},
		{
			name: "title",
			rec:  models.CandidateRecord{Host: "h", Path: "/1", Title: "Foo (beta)"},
			want: Key{Kind: KindTitle, Value: "foo"},
		},
		{
			name: "url when title is sentinel",
			rec:  models.CandidateRecord{Host: "H", Path: "/1", Title: models.None},
			want: Key{Kind: KindURL, Value: "https://h/1"},
		},
		{
			name: "url when title is only brackets",
			rec:  models.CandidateRecord{Host: "h", Path: "/2", Title: "(draft)"},
			want: Key{Kind: KindURL, Value: "https://h/2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClusterKey(&tt.rec))
		})
	}
}

func TestKeyKindsDoNotCollide(t *testing.T) {
	byTitle := models.CandidateRecord{Host: "x", Path: "/", Title: "https://h/1"}
	byURL := models.CandidateRecord{Host: "h", Path: "/1", Title: models.None}

	assert.NotEqual(t, ClusterKey(&byTitle), ClusterKey(&byURL))
}

func TestDedupeLines(t *testing.T) {
	in := "one\n\ntwo\n  one  \nthree\ntwo\n"

	assert.Equal(t, "one\ntwo\nthree", DedupeLines(in))
	assert.Equal(t, "", DedupeLines("\n\n"))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityRank("CRITICAL"), SeverityRank("high"))
	assert.Greater(t, SeverityRank("high"), SeverityRank("Medium"))
	assert.Greater(t, SeverityRank("medium"), SeverityRank("low"))
	assert.Greater(t, SeverityRank("low"), SeverityRank("unknown"))
	assert.Equal(t, 0, SeverityRank(""))
}
