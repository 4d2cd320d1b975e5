// Package models defines the records that flow between the crawler, the
// normalizer, the deduplicator and the storage collaborators.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// None is the sentinel stored in place of any field that could not be
// extracted. List fields use a single-element slice holding it.
const None = "None"

// NoneList returns a fresh sentinel list.
func NoneList() []string {
	return []string{None}
}

// IsNone reports whether s is empty or the sentinel.
func IsNone(s string) bool {
	return s == "" || s == None
}

// IsNoneList reports whether a list carries no real values.
func IsNoneList(list []string) bool {
	for _, v := range list {
		if !IsNone(v) {
			return false
		}
	}

	return true
}

// RawDocument is one page of advisory text handed over by a crawler.
type RawDocument struct {
	Host     string `json:"host"`
	Path     string `json:"path"`
	ClientID string `json:"clientId"`
	Text     string `json:"text"`
}

// Generator identifies the program version that produced a record.
type Generator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CandidateRecord is a normalized advisory built from one scraped page.
type CandidateRecord struct {
	Generator             *Generator `json:"generator,omitempty"`
	ClientID              string     `json:"clientId"`
	Host                  string     `json:"host"`
	Path                  string     `json:"path"`
	Title                 string     `json:"title"`
	Author                string     `json:"author"`
	UploadDate            string     `json:"uploadDate"`
	CVEIDs                []string   `json:"cveIds"`
	CVSS                  Score      `json:"cvss"`
	VulnerabilityClass    []string   `json:"vulnerabilityClass"`
	AffectedProducts      []string   `json:"affectedProducts"`
	ExploitationTechnique []string   `json:"exploitationTechnique"`
	Article               string     `json:"article"`
	Ref                   []string   `json:"ref"`
	DedupHash             string     `json:"dedupHash"`
	Severity              string     `json:"severity,omitempty"`
	Tags                  []string   `json:"tags,omitempty"`
}

// Score is a CVSS value that may be absent. The zero value is absent.
type Score struct {
	Value float64
	Valid bool
}

// NewScore returns a present score.
func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

// String renders the score the way it is hashed and displayed.
func (s Score) String() string {
	if !s.Valid {
		return None
	}

	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// MarshalJSON encodes a present score as a number and an absent one as "None".
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return json.Marshal(None)
	}

	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts a number, a numeric string, or the sentinel.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}

		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			*s = Score{}
			return nil
		}

		*s = NewScore(v)

		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*s = NewScore(v)

	return nil
}
