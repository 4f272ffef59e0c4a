// Package filestore is an in-memory keyed store of named byte blobs with
// per-file string metadata.
package filestore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrNotFound is returned, wrapped with the offending id or key, for unknown
// files and missing metadata keys.
var ErrNotFound = errors.New("not found")

// Kind classifies a stored file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindGIF   Kind = "gif"
	KindCSV   Kind = "csv"
	KindOther Kind = "other"
)

// KindFromName guesses the kind from the file extension.
func KindFromName(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gif":
		return KindGIF
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp", ".svg", ".tif", ".tiff":
		return KindImage
	case ".mp4", ".mov", ".webm", ".avi", ".mkv", ".m4v":
		return KindVideo
	case ".csv", ".tsv":
		return KindCSV
	default:
		return KindOther
	}
}

// ParseKind validates a user-supplied kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImage, KindVideo, KindGIF, KindCSV, KindOther:
		return k, nil
	}
	return "", fmt.Errorf("unknown file kind %q (want image, video, gif, csv or other)", s)
}

// Record describes one stored file. Content is only populated by Snapshot.
type Record struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      Kind              `json:"kind"`
	Size      int               `json:"size"`
	Checksum  string            `json:"checksum"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Content   []byte            `json:"-"`
}

func (r *Record) clone(withContent bool) Record {
	out := *r
	out.Metadata = maps.Clone(r.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.Content = nil
	if withContent {
		out.Content = append([]byte(nil), r.Content...)
	}
	return out
}

// Checksum returns the hex BLAKE3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	files map[string]*Record
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{files: make(map[string]*Record), now: time.Now}
}

func notFound(id string) error { return fmt.Errorf("file %s: %w", id, ErrNotFound) }

// Create stores a copy of content under a new id.
func (s *Store) Create(name string, kind Kind, content []byte) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("file name is required")
	}
	if kind == "" {
		kind = KindFromName(name)
	}
	now := s.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Size:      len(content),
		Checksum:  Checksum(content),
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
		Content:   append([]byte(nil), content...),
	}
	s.mu.Lock()
	s.files[rec.ID] = rec
	s.mu.Unlock()
	return rec.ID, nil
}

// Read returns the record for id without its content.
func (s *Store) Read(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[id]
	if !ok {
		return Record{}, notFound(id)
	}
	return rec.clone(false), nil
}

// Update replaces the content of id. A nil content leaves the file unchanged.
func (s *Store) Update(id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return notFound(id)
	}
	if content == nil {
		return nil
	}
	rec.Content = append([]byte(nil), content...)
	rec.Size = len(content)
	rec.Checksum = Checksum(content)
	rec.UpdatedAt = s.now()
	return nil
}

// Delete removes id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return notFound(id)
	}
	delete(s.files, id)
	return nil
}

// List returns all records ordered by creation time, then name.
func (s *Store) List() []Record {
	return s.collect(false)
}

// Snapshot is List with file content included.
func (s *Store) Snapshot() []Record {
	return s.collect(true)
}

func (s *Store) collect(withContent bool) []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.files))
	for _, rec := range s.files {
		out = append(out, rec.clone(withContent))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Content returns a copy of the bytes stored under id.
func (s *Store) Content(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[id]
	if !ok {
		return nil, notFound(id)
	}
	return append([]byte(nil), rec.Content...), nil
}

// SetMetadata sets key to value on id.
func (s *Store) SetMetadata(id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[id]
	if !ok {
		return notFound(id)
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]string{}
	}
	rec.Metadata[key] = value
	rec.UpdatedAt = s.now()
	return nil
}

// GetMetadata returns the value of key on id.
func (s *Store) GetMetadata(id, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[id]
	if !ok {
		return "", notFound(id)
	}
	v, ok := rec.Metadata[key]
	if !ok {
		return "", fmt.Errorf("metadata %q on file %s: %w", key, id, ErrNotFound)
	}
	return v, nil
}

// Resolve finds a file by exact id, unique id prefix, or unique name.
func (s *Store) Resolve(ref string) (Record, error) {
	ref = strings.TrimSpace(ref)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.files[ref]; ok {
		return rec.clone(false), nil
	}
	var byPrefix, byName []*Record
	for id, rec := range s.files {
		if ref != "" && strings.HasPrefix(id, ref) {
			byPrefix = append(byPrefix, rec)
		}
		if rec.Name == ref {
			byName = append(byName, rec)
		}
	}
	for _, matches := range [][]*Record{byPrefix, byName} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0].clone(false), nil
		default:
			return Record{}, fmt.Errorf("%q matches %d files; use the full id", ref, len(matches))
		}
	}
	return Record{}, notFound(ref)
}

// Restore loads records produced by Snapshot, verifying each checksum.
// Existing files with the same id are replaced.
func (s *Store) Restore(records []Record) error {
	loaded := make(map[string]*Record, len(records))
	for i := range records {
		r := records[i].clone(true)
		if r.ID == "" {
			return fmt.Errorf("record %d (%s): missing id", i, r.Name)
		}
		if got := Checksum(r.Content); got != r.Checksum {
			return fmt.Errorf("file %s (%s): checksum mismatch", r.ID, r.Name)
		}
		r.Size = len(r.Content)
		loaded[r.ID] = &r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range loaded {
		s.files[id] = r
	}
	return nil
}
