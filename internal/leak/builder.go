// Package leak builds records from credential dump files posted to leak
// channels. These files have no advisory layout, so the section parser is
// not involved.
package leak

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"blackwatch/internal/crawler/parsers"
	"blackwatch/internal/models"
)

// MaxFileSize is the largest leak file that is processed (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// DefaultHost is the host recorded for leak channel posts.
const DefaultHost = "t.me"

// Leak builder errors.
var (
	ErrFileTooLarge   = errors.New("leak file exceeds maximum size")
	ErrUnsupportedExt = errors.New("leak file is not a .txt file")
	ErrMissingChannel = errors.New("leak file has no channel")
)

var emailNamePattern = regexp.MustCompile(`([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})\s*[:：]\s*([^\n\r]+)`)

// File is one downloaded attachment together with the post it came from.
type File struct {
	Channel   string
	MessageID int64
	Name      string
	Posted    time.Time
	Data      []byte
}

// Builder turns leak files into records.
type Builder struct {
	clientID string
	host     string
}

// NewBuilder creates a builder stamping clientID on every record.
func NewBuilder(clientID string) *Builder {
	return &Builder{clientID: clientID, host: DefaultHost}
}

// Build extracts email:name pairs and URLs from f.
func (b *Builder) Build(f File) (models.LeakRecord, error) {
	if !strings.EqualFold(filepath.Ext(f.Name), ".txt") {
		return models.LeakRecord{}, fmt.Errorf("%w: %s", ErrUnsupportedExt, f.Name)
	}

	if len(f.Data) > MaxFileSize {
		return models.LeakRecord{}, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, f.Name, len(f.Data))
	}

	if strings.TrimSpace(f.Channel) == "" {
		return models.LeakRecord{}, ErrMissingChannel
	}

	content := strings.ToValidUTF8(string(f.Data), "")
	emails, names := ExtractCredentials(content)
	sum := sha256.Sum256(f.Data)

	uploadDate := models.None
	if !f.Posted.IsZero() {
		uploadDate = f.Posted.UTC().Format(time.RFC3339)
	}

	return models.LeakRecord{
		ClientID:   b.clientID,
		Host:       b.host,
		Path:       fmt.Sprintf("/%s/%d", f.Channel, f.MessageID),
		Title:      f.Name,
		Author:     f.Channel,
		UploadDate: uploadDate,
		Article:    models.None,
		Ref:        parsers.ExtractURLs(content),
		Leaked: models.LeakedData{
			Emails:        emails,
			EmailCount:    len(emails),
			Usernames:     names,
			UsernameCount: len(names),
			FileName:      f.Name,
			SHA256:        hex.EncodeToString(sum[:]),
		},
	}, nil
}

// BuildFromPath reads a leak file from disk. The size is checked before
// the file is read.
func (b *Builder) BuildFromPath(path, channel string, messageID int64) (models.LeakRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.LeakRecord{}, fmt.Errorf("failed to stat leak file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return models.LeakRecord{}, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.LeakRecord{}, fmt.Errorf("failed to read leak file: %w", err)
	}

	return b.Build(File{
		Channel:   channel,
		MessageID: messageID,
		Name:      filepath.Base(path),
		Posted:    info.ModTime(),
		Data:      data,
	})
}

// ExtractCredentials returns the emails and the names paired with them, in
// file order. Both slices have the same length.
func ExtractCredentials(content string) (emails, names []string) {
	emails = []string{}
	names = []string{}

	for _, m := range emailNamePattern.FindAllStringSubmatch(content, -1) {
		emails = append(emails, m[1])
		names = append(names, strings.TrimSpace(m[2]))
	}

	return emails, names
}
