package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/models"
)

func record(host, path, title string) models.CandidateRecord {
	return models.CandidateRecord{
		Host:                  host,
		Path:                  path,
		Title:                 title,
		Author:                models.None,
		UploadDate:            models.None,
		CVEIDs:                models.NoneList(),
		VulnerabilityClass:    models.NoneList(),
		AffectedProducts:      models.NoneList(),
		ExploitationTechnique: models.NoneList(),
		Article:               models.None,
		Ref:                   models.NoneList(),
	}
}

func TestCoalesce_Empty(t *testing.T) {
	assert.Empty(t, Coalesce(nil))
	assert.Empty(t, Coalesce([]models.CandidateRecord{}))
}

func TestCoalesce_ClusterByCVE(t *testing.T) {
	a := record("a.example", "/1", "Foo overflow CVE-2021-1234")
	b := record("b.example", "/advisories/cve-2021-1234", "Different wording entirely")
	c := record("c.example", "/2", "Unrelated")

	clusters := Clusters([]models.CandidateRecord{a, b, c})

	require.Len(t, clusters, 2)
	assert.Equal(t, Key{Kind: KindCVE, Value: "CVE-2021-1234"}, clusters[0].Key)
	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, "Unrelated", clusters[1].Members[0].Title)

	out := Coalesce([]models.CandidateRecord{a, b, c})
	assert.Len(t, out, 2)
}

func TestCoalesce_MergePrecedenceSeverity(t *testing.T) {
	low := record("a.example", "/1", "Foo CVE-2022-0001")
	low.Severity = "low"
	low.Article = "a much longer article body that wins representative selection"

	critical := record("b.example", "/2", "Bar CVE-2022-0001")
	critical.Severity = "Critical"

	out := Coalesce([]models.CandidateRecord{low, critical})

	require.Len(t, out, 1)
	assert.Equal(t, "a.example", out[0].Host)
	assert.Equal(t, "Critical", out[0].Severity)
}

func TestCoalesce_TitleNormalizationExample(t *testing.T) {
	a := record("a.example", "/1", "SQL Injection in Foo (v1.2)")
	b := record("b.example", "/2", "sql injection in foo")

	assert.Equal(t, ClusterKey(&a), ClusterKey(&b))

	out := Coalesce([]models.CandidateRecord{a, b})
	assert.Len(t, out, 1)
}

func TestCoalesce_Idempotent(t *testing.T) {
	in := []models.CandidateRecord{
		record("a.example", "/1", "First"),
		record("b.example", "/2", "Second CVE-2020-5555"),
		record("c.example", "/3", models.None),
	}

	once := Coalesce(in)
	twice := Coalesce(once)

	assert.Equal(t, in, once)
	assert.Equal(t, once, twice)
}

func TestCoalesce_DoesNotModifyInput(t *testing.T) {
	a := record("a.example", "/1", "Same")
	a.Article = "alpha"
	b := record("b.example", "/2", "Same")
	b.Article = "beta body"

	in := []models.CandidateRecord{a, b}
	_ = Coalesce(in)

	assert.Equal(t, "alpha", in[0].Article)
	assert.Equal(t, "beta body", in[1].Article)
}

func TestCoalesce_MergedArticle(t *testing.T) {
	rep := record("a.example", "/1", "Shared Title")
	rep.Article = "alpha\nshared"
	other := record("B.example", "//2", "shared title")
	other.Article = "shared\nz"

	out := Coalesce([]models.CandidateRecord{rep, other})

	require.Len(t, out, 1)
	assert.Equal(t,
		"alpha\nshared\n---\nz\n\n---\nReferences:\n- https://a.example/1\n- https://b.example/2",
		out[0].Article)
}

func TestCoalesce_FillsMissingFields(t *testing.T) {
	rep := record("a.example", "/1", "Widget RCE")
	rep.Article = "the longest article of the cluster"
	rep.UploadDate = "2023-01-01"

	other := record("b.example", "/2", "widget rce")
	other.CVEIDs = []string{"CVE-2023-9999"}
	other.CVSS = models.NewScore(9.1)
	other.UploadDate = "2023-06-30"
	other.Tags = []string{"web"}

	third := record("c.example", "/3", "Widget RCE [PoC]")
	third.Tags = []string{"exploit", "web"}

	out := Coalesce([]models.CandidateRecord{rep, other, third})

	require.Len(t, out, 1)
	assert.Equal(t, "a.example", out[0].Host)
	assert.Equal(t, []string{"CVE-2023-9999"}, out[0].CVEIDs)
	assert.Equal(t, models.NewScore(9.1), out[0].CVSS)
	assert.Equal(t, "2023-06-30", out[0].UploadDate)
	assert.Equal(t, []string{"exploit", "web"}, out[0].Tags)
}

func TestCoalesce_FinalIdentityPass(t *testing.T) {
	// Same page seen once with a CVE tag in brackets and once without.
	a := record("a.example", "/1", "Foo [CVE-2024-0001]")
	b := record("a.example", "/1", "Foo")

	out, stats := CoalesceWithStats([]models.CandidateRecord{a, b})

	require.Len(t, out, 1)
	assert.Equal(t, "Foo [CVE-2024-0001]", out[0].Title)
	assert.Equal(t, Stats{Input: 2, Clusters: 2, Merged: 0, Dropped: 1, Output: 1}, stats)
}

func TestRepresentative(t *testing.T) {
	tests := []struct {
		name    string
		members []models.CandidateRecord
		want    int
	}{
		{
			name: "longest article",
			members: []models.CandidateRecord{
				{Host: "a", Path: "/1", Article: "short"},
				{Host: "b", Path: "/2", Article: "much longer body"},
			},
			want: 1,
		},
		{
			name: "later date on equal article",
			members: []models.CandidateRecord{
				{Host: "a", Path: "/1", Article: "same", UploadDate: "2023-01-01"},
				{Host: "b", Path: "/2", Article: "same", UploadDate: "2024-01-01"},
			},
			want: 1,
		},
		{
			name: "sentinel date loses",
			members: []models.CandidateRecord{
				{Host: "a", Path: "/1", Article: "same", UploadDate: "2023-01-01"},
				{Host: "b", Path: "/2", Article: "same", UploadDate: models.None},
			},
			want: 0,
		},
		{
			name: "sentinel article loses to short body",
			members: []models.CandidateRecord{
				{Host: "a", Path: "/1", Article: models.None},
				{Host: "b", Path: "/2", Article: "ab"},
			},
			want: 1,
		},
		{
			name: "shorter url",
			members: []models.CandidateRecord{
				{Host: "long.example", Path: "/deep/path", Article: "same"},
				{Host: "s.example", Path: "/p", Article: "same"},
			},
			want: 1,
		},
		{
			name: "full tie keeps first",
			members: []models.CandidateRecord{
				{Host: "a", Path: "/1", Article: "same"},
				{Host: "b", Path: "/2", Article: "same"},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, representative(tt.members))
		})
	}
}
