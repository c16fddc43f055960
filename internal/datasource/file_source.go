// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/sahayak/internal/models"
)

// defaultFileAliases lists alternate file names tried after <table>.csv.
var defaultFileAliases = map[string][]string{
	models.TableServices: {"service_master"},
}

var utf8BOM = []byte("\uFEFF")

// FileSource reads one <table>.csv per table from a directory.
type FileSource struct {
	dir     string
	aliases map[string][]string
}

// NewFileSource returns a CSV source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir, aliases: defaultFileAliases}
}

// Kind implements Source.
func (s *FileSource) Kind() SourceKind { return SourceFiles }

// Ping checks that the directory exists.
func (s *FileSource) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("file source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file source: %s is not a directory", s.dir)
	}
	return nil
}

// HasTable implements Source.
func (s *FileSource) HasTable(_ context.Context, table string) bool {
	_, ok := s.locate(table)
	return ok
}

func (s *FileSource) locate(table string) (string, bool) {
	if strings.ContainsAny(table, `/\`) || strings.Contains(table, "..") {
		return "", false
	}
	for _, name := range append([]string{table}, s.aliases[table]...) {
		p := filepath.Join(s.dir, name+".csv")
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load implements Source. Header names are trimmed and lower-cased; a UTF-8
// byte order mark is dropped.
func (s *FileSource) Load(_ context.Context, table string) (*Table, error) {
	path, ok := s.locate(table)
	if !ok {
		return nil, fmt.Errorf("file source: %s: %w", table, os.ErrNotExist)
	}

	f, err := os.Open(path) //nolint:gosec // path is built from an allowlisted table name
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	if lead, _ := br.Peek(len(utf8BOM)); bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Name: table, Source: SourceFiles}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := &Table{Name: table, Source: SourceFiles, Columns: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
