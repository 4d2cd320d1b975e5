package crawler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"blackwatch/internal/config"
	"blackwatch/internal/models"
)

// ErrUnknownFormat is returned for an output format other than json or jsonl.
var ErrUnknownFormat = errors.New("unknown output format")

var trailingIDPattern = regexp.MustCompile(`(\d+)\D*$`)

// Writer stores records on disk, one pretty JSON file per record or a
// single JSONL stream per source.
type Writer struct {
	cfg *config.Config
}

// NewWriter creates a writer using the output section of cfg.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{cfg: cfg}
}

// Write stores records for source and returns the paths written.
func (w *Writer) Write(source string, records []models.CandidateRecord) ([]string, error) {
	switch w.cfg.Crawler.Output.Format {
	case "json":
		return w.writeFiles(source, records)
	case "jsonl":
		path := w.cfg.GetStreamPath(source)
		if err := AppendJSONL(path, records); err != nil {
			return nil, err
		}

		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, w.cfg.Crawler.Output.Format)
	}
}

func (w *Writer) writeFiles(source string, records []models.CandidateRecord) ([]string, error) {
	paths := make([]string, 0, len(records))

	for i := range records {
		path := w.cfg.GetOutputPath(source, recordID(&records[i], i))
		if err := SaveRecordJSON(&records[i], path, w.cfg.Crawler.Output.PrettyPrint); err != nil {
			return paths, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// recordID takes the trailing number of the record path, falling back to
// the position in the batch.
func recordID(rec *models.CandidateRecord, index int) int {
	if m := trailingIDPattern.FindStringSubmatch(rec.Path); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			return id
		}
	}

	return index
}

// SaveRecordJSON writes one record to outputPath, creating parent dirs.
func SaveRecordJSON(rec *models.CandidateRecord, outputPath string, pretty bool) error {
	var (
		jsonData []byte
		err      error
	)

	if pretty {
		jsonData, err = json.MarshalIndent(rec, "", "  ")
	} else {
		jsonData, err = json.Marshal(rec)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// AppendJSONL appends records to path, one JSON object per line.
func AppendJSONL(path string, records []models.CandidateRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush stream: %w", err)
	}

	return f.Close()
}

// ReadRecords loads records from a JSON array, a single JSON object or a
// JSONL stream.
func ReadRecords(path string) ([]models.CandidateRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var list []models.CandidateRecord
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var one models.CandidateRecord
	if err := json.Unmarshal(data, &one); err == nil {
		return []models.CandidateRecord{one}, nil
	}

	list = nil
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec models.CandidateRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(list)+1, err)
		}

		list = append(list, rec)
	}

	return list, nil
}
