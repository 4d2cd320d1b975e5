package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/models"
)

const advisoryText = `Document Title:
===============
Foo CMS 2.1 - SQL Injection Vulnerability

Release Date:
=============
2024/1/2

Common Vulnerability Scoring System:
====================================
8.8

Vulnerability Class:
====================
SQL Injection, Authentication Bypass

Exploitation Technique:
=======================
Remote

CVE:
====
CVE-2024-1111; CVE-2024-2222

Proof of Concept (PoC):
=======================
GET /login.php?id=1' OR '1'='1 HTTP/1.1
Host: foo.example

Security Risk:
==============
High

References (Source):
====================
https://foo.example/advisory, https://foo.example/advisory
https://nvd.example/CVE-2024-1111
`

func testDoc(text string) models.RawDocument {
	return models.RawDocument{
		Host:     "www.vulnerability-lab.com",
		Path:     "/get_content.php?id=1",
		ClientID: "client-1",
		Text:     text,
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(&models.Generator{Name: "vuln_parser", Version: "v2"})

	rec := b.Build(testDoc(advisoryText))

	assert.Equal(t, "client-1", rec.ClientID)
	assert.Equal(t, "www.vulnerability-lab.com", rec.Host)
	assert.Equal(t, "/get_content.php?id=1", rec.Path)
	assert.Equal(t, "Foo CMS 2.1 - SQL Injection Vulnerability", rec.Title)
	assert.Equal(t, models.None, rec.Author)
	assert.Equal(t, "2024-01-02", rec.UploadDate)
	assert.Equal(t, models.NewScore(8.8), rec.CVSS)
	assert.Equal(t, []string{"CVE-2024-1111", "CVE-2024-2222"}, rec.CVEIDs)
	assert.Equal(t, []string{"SQL Injection", "Authentication Bypass"}, rec.VulnerabilityClass)
	assert.Equal(t, models.NoneList(), rec.AffectedProducts)
	assert.Equal(t, []string{"Remote"}, rec.ExploitationTechnique)
	assert.Equal(t, "GET /login.php?id=1' OR '1'='1 HTTP/1.1\nHost: foo.example", rec.Article)
	assert.Equal(t, []string{"https://foo.example/advisory", "https://nvd.example/CVE-2024-1111"}, rec.Ref)
	require.NotNil(t, rec.Generator)
	assert.Equal(t, "vuln_parser", rec.Generator.Name)
	assert.Len(t, rec.DedupHash, 64)
	assert.Equal(t, DedupHash(&rec), rec.DedupHash)
}

func TestBuilder_HeadingExample(t *testing.T) {
	text := "Document Title:\n====\nFoo Remote Code Execution\nRelease Date:\n====\n2024-01-02\n"

	rec := NewBuilder(nil).Build(testDoc(text))

	assert.Equal(t, "Foo Remote Code Execution", rec.Title)
	assert.Equal(t, "2024-01-02", rec.UploadDate)
	assert.Nil(t, rec.Generator)
}

func TestBuilder_EmptyTextYieldsSentinels(t *testing.T) {
	rec := NewBuilder(nil).Build(testDoc(""))

	assert.Equal(t, models.None, rec.Title)
	assert.Equal(t, models.None, rec.UploadDate)
	assert.Equal(t, models.None, rec.Article)
	assert.False(t, rec.CVSS.Valid)
	assert.Equal(t, models.NoneList(), rec.CVEIDs)
	assert.Equal(t, models.NoneList(), rec.VulnerabilityClass)
	assert.Equal(t, models.NoneList(), rec.AffectedProducts)
	assert.Equal(t, models.NoneList(), rec.ExploitationTechnique)
	assert.Equal(t, models.NoneList(), rec.Ref)
	assert.NotEmpty(t, rec.DedupHash)
}

func TestBuilder_Deterministic(t *testing.T) {
	b := NewBuilder(nil)

	first := b.Build(testDoc(advisoryText))
	second := b.Build(testDoc(advisoryText))

	assert.Equal(t, first, second)
	assert.Equal(t, first.DedupHash, second.DedupHash)
}

func TestBuilder_ReferencesFallback(t *testing.T) {
	// A heading without a colon is invisible to the state machine.
	text := "Document Title:\n=====\nBaz\n\n  References\nhttps://baz.example/a\n\nCredits & Authors:\n=====\nteam\n"

	rec := NewBuilder(nil).Build(testDoc(text))

	assert.Equal(t, []string{"https://baz.example/a"}, rec.Ref)
}

func TestDedupHash(t *testing.T) {
	base := models.CandidateRecord{
		Title:                 "A",
		UploadDate:            "2024-01-01",
		CVSS:                  models.NewScore(5),
		VulnerabilityClass:    []string{"XSS"},
		ExploitationTechnique: []string{"Remote"},
		Article:               "body",
		Ref:                   []string{"https://a.example"},
	}

	changed := base
	changed.Article = "other body"

	ignored := base
	ignored.Host = "elsewhere.example"
	ignored.AffectedProducts = []string{"Foo"}

	assert.NotEqual(t, DedupHash(&base), DedupHash(&changed))
	assert.Equal(t, DedupHash(&base), DedupHash(&ignored))
}
