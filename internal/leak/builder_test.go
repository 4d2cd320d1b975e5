package leak

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/models"
)

const dump = `combo list
alice@example.com : Alice Smith
bob.jones@mail.example.org：bob_j
not-an-email : nobody
source https://paste.example/abc, mirror https://paste.example/abc
`

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder("client-1")
	posted := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	rec, err := b.Build(File{Channel: "DBleak", MessageID: 42, Name: "dump.TXT", Posted: posted, Data: []byte(dump)})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(dump))

	assert.Equal(t, "client-1", rec.ClientID)
	assert.Equal(t, "t.me", rec.Host)
	assert.Equal(t, "/DBleak/42", rec.Path)
	assert.Equal(t, "DBleak", rec.Author)
	assert.Equal(t, "2024-05-06T07:08:09Z", rec.UploadDate)
	assert.Equal(t, models.None, rec.Article)
	assert.Equal(t, []string{"https://paste.example/abc"}, rec.Ref)
	assert.Equal(t, []string{"alice@example.com", "bob.jones@mail.example.org"}, rec.Leaked.Emails)
	assert.Equal(t, []string{"Alice Smith", "bob_j"}, rec.Leaked.Usernames)
	assert.Equal(t, 2, rec.Leaked.EmailCount)
	assert.Equal(t, 2, rec.Leaked.UsernameCount)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Leaked.SHA256)

	cand := rec.Candidate()
	assert.Equal(t, "dump.TXT", cand.Title)
	assert.Equal(t, rec.Leaked.SHA256, cand.DedupHash)
	assert.Equal(t, []string{"leak"}, cand.Tags)
}

func TestBuilder_Build_Errors(t *testing.T) {
	b := NewBuilder("client-1")

	tests := []struct {
		name    string
		file    File
		wantErr error
	}{
		{"wrong extension", File{Channel: "c", Name: "dump.csv"}, ErrUnsupportedExt},
		{"too large", File{Channel: "c", Name: "big.txt", Data: make([]byte, MaxFileSize+1)}, ErrFileTooLarge},
		{"no channel", File{Name: "dump.txt"}, ErrMissingChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.file)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuilder_Build_EmptyFile(t *testing.T) {
	rec, err := NewBuilder("c").Build(File{Channel: "ch", MessageID: 1, Name: "empty.txt"})
	require.NoError(t, err)

	assert.Empty(t, rec.Leaked.Emails)
	assert.NotNil(t, rec.Leaked.Emails)
	assert.Equal(t, models.NoneList(), rec.Ref)
	assert.Equal(t, models.None, rec.UploadDate)
}

func TestBuilder_BuildFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leak.txt")
	require.NoError(t, os.WriteFile(path, []byte(dump), 0o644))

	rec, err := NewBuilder("c").BuildFromPath(path, "DBleak", 7)
	require.NoError(t, err)
	assert.Equal(t, "leak.txt", rec.Leaked.FileName)
	assert.Equal(t, "/DBleak/7", rec.Path)
	assert.NotEqual(t, models.None, rec.UploadDate)

	_, err = NewBuilder("c").BuildFromPath(filepath.Join(dir, "missing.txt"), "DBleak", 8)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
