// Package metadata stamps generated reports with a content hash so later
// edits can be detected.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// TagStart is the start of the metadata block.
	TagStart = "<!-- METADATA_START"
	// TagEnd is the end of the metadata block.
	TagEnd = "METADATA_END -->"
)

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("hash mismatch")
)

// Metadata is the parsed stamp of a report.
type Metadata struct {
	LastModify time.Time
	Generator  string
	Version    string
	Hash       string
	Validation bool
}

// Stamp carries the fields Sign writes besides the hash.
type Stamp struct {
	Generator string
	Version   string
	Validated bool
}

var metadataRegex = regexp.MustCompile(`(?s)<!--\s*METADATA_START\s*\n(.*?)\n\s*METADATA_END\s*-->`)

// Extract returns the parsed block, or nil, and the content without it.
// Trailing newlines are trimmed so the hash is stable across rewrites.
func Extract(content string) (*Metadata, string) {
	match := metadataRegex.FindStringSubmatch(content)
	clean := strings.TrimRight(metadataRegex.ReplaceAllString(content, ""), "\n")

	if len(match) < 2 {
		return nil, clean
	}

	meta := &Metadata{}

	for line := range strings.SplitSeq(match[1], "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "VALIDATION":
			meta.Validation = strings.EqualFold(val, "TRUE")
		case "GENERATOR":
			meta.Generator = val
		case "VERSION":
			meta.Version = val
		case "LAST_MODIFY":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.LastModify = t
			}
		case "HASH":
			meta.Hash = val
		}
	}

	return meta, clean
}

// CalculateHash computes the SHA-256 of content with any block removed.
func CalculateHash(content string) string {
	_, clean := Extract(content)
	sum := sha256.Sum256([]byte(clean))

	return hex.EncodeToString(sum[:])
}

// Sign replaces any existing block with a fresh one.
func Sign(content string, stamp Stamp) string {
	_, clean := Extract(content)

	valStr := "FALSE"
	if stamp.Validated {
		valStr = "TRUE"
	}

	var b strings.Builder

	b.WriteString(clean)
	b.WriteString("\n\n")
	b.WriteString(TagStart)
	fmt.Fprintf(&b, "\nVALIDATION: %s", valStr)

	if stamp.Generator != "" {
		fmt.Fprintf(&b, "\nGENERATOR: %s", stamp.Generator)
	}

	if stamp.Version != "" {
		fmt.Fprintf(&b, "\nVERSION: %s", stamp.Version)
	}

	fmt.Fprintf(&b, "\nLAST_MODIFY: %s\nHASH: %s\n%s",
		time.Now().UTC().Format(time.RFC3339), CalculateHash(clean), TagEnd)

	return b.String()
}

// Verify checks that content still matches the hash in its block.
func Verify(content string) (bool, error) {
	meta, clean := Extract(content)
	if meta == nil {
		return false, ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return false, ErrNoHashFound
	}

	calculated := CalculateHash(clean)
	if calculated != meta.Hash {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return true, nil
}
