// Package workspace persists a filestore.Store on disk and attaches analysis
// results to the tabular files it holds.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabschema-cli/internal/analysis"
	"github.com/KaramelBytes/tabschema-cli/internal/filestore"
	"github.com/KaramelBytes/tabschema-cli/internal/utils"
)

const blobsDir = "blobs"

// Metadata keys written by Annotate.
const (
	MetaRowCount       = "row_count"
	MetaColumnCount    = "column_count"
	MetaColumnTypes    = "column_types"
	MetaCreateTable    = "create_table"
	MetaInsertTemplate = "insert_template"
	MetaTruncated      = "truncated"
	MetaAnalysis       = "analysis"
)

// Workspace is a named collection of files persisted under a directory as
// workspace.json plus content-addressed blobs.
type Workspace struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Files       []filestore.Record `json:"files"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`

	store   *filestore.Store
	rootDir string
	log     *zap.Logger
}

// New constructs an in-memory workspace. Call Save to persist.
func New(name, description, rootDir string) *Workspace {
	return &Workspace{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		store:       filestore.New(),
		rootDir:     rootDir,
		log:         zap.NewNop(),
	}
}

// Load reads workspace.json and its blobs from dir.
func Load(dir string) (*Workspace, error) {
	path := filepath.Join(dir, utils.WorkspaceFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workspace not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var w Workspace
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}
	for i := range w.Files {
		content, err := os.ReadFile(blobPath(dir, w.Files[i].Checksum))
		if err != nil {
			return nil, fmt.Errorf("read blob for %s (%s): %w", w.Files[i].ID, w.Files[i].Name, err)
		}
		w.Files[i].Content = content
	}
	w.store = filestore.New()
	if err := w.store.Restore(w.Files); err != nil {
		return nil, fmt.Errorf("restore files: %w", err)
	}
	w.Files = nil
	w.rootDir = dir
	w.log = zap.NewNop()
	return &w, nil
}

// SetLogger replaces the workspace logger. A nil logger disables logging.
func (w *Workspace) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	w.log = l.Named("workspace")
}

// RootDir returns the on-disk workspace directory.
func (w *Workspace) RootDir() string { return w.rootDir }

// Store returns the backing file store.
func (w *Workspace) Store() *filestore.Store { return w.store }

// Save writes new blobs, then workspace.json, then removes blobs no file
// references any more.
func (w *Workspace) Save() error {
	if w.rootDir == "" {
		return errors.New("workspace root directory not set")
	}
	if err := utils.EnsureDir(w.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	snap := w.store.Snapshot()
	keep := make(map[string]bool, len(snap))
	for _, rec := range snap {
		keep[rec.Checksum] = true
		p := blobPath(w.rootDir, rec.Checksum)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := utils.EnsureDir(filepath.Dir(p)); err != nil {
			return fmt.Errorf("ensure blob dir: %w", err)
		}
		if err := utils.SafeWriteFile(p, rec.Content); err != nil {
			return fmt.Errorf("write blob %s: %w", rec.Checksum, err)
		}
	}

	w.UpdatedAt = time.Now()
	w.Files = snap
	data, err := utils.PrettyJSON(w)
	w.Files = nil
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(filepath.Join(w.rootDir, utils.WorkspaceFileName), data); err != nil {
		return err
	}
	return w.pruneBlobs(keep)
}

func (w *Workspace) pruneBlobs(keep map[string]bool) error {
	root := filepath.Join(w.rootDir, blobsDir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || keep[d.Name()] {
			return nil
		}
		w.log.Debug("removing unreferenced blob", zap.String("checksum", d.Name()))
		return os.Remove(p)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func blobPath(root, checksum string) string {
	prefix := "00"
	if len(checksum) >= 2 {
		prefix = checksum[:2]
	}
	return filepath.Join(root, blobsDir, prefix, checksum)
}

// AddFile copies the file at path into the store. Tabular files are analyzed
// and annotated; an analysis failure removes the file again.
func (w *Workspace) AddFile(ctx context.Context, path string, kind filestore.Kind, an *analysis.Analyzer) (filestore.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return filestore.Record{}, fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(path)
	if kind == "" {
		kind = filestore.KindFromName(name)
	}
	id, err := w.store.Create(name, kind, content)
	if err != nil {
		return filestore.Record{}, err
	}
	w.log.Debug("file added", zap.String("id", id), zap.String("name", name), zap.Int("size", len(content)))

	if an != nil && analysis.IsTabular(name) {
		if _, err := w.Annotate(ctx, id, an); err != nil {
			_ = w.store.Delete(id)
			return filestore.Record{}, err
		}
	}
	w.UpdatedAt = time.Now()
	return w.store.Read(id)
}

// UpdateFile replaces the content of id with the file at path and refreshes
// the analysis of tabular files. The old content is restored if the new
// content fails to analyze.
func (w *Workspace) UpdateFile(ctx context.Context, id, path string, an *analysis.Analyzer) (filestore.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return filestore.Record{}, fmt.Errorf("read file: %w", err)
	}
	rec, err := w.store.Read(id)
	if err != nil {
		return filestore.Record{}, err
	}
	old, err := w.store.Content(id)
	if err != nil {
		return filestore.Record{}, err
	}
	if err := w.store.Update(id, content); err != nil {
		return filestore.Record{}, err
	}
	if an != nil && analysis.IsTabular(rec.Name) {
		if _, err := w.Annotate(ctx, id, an); err != nil {
			_ = w.store.Update(id, old)
			return filestore.Record{}, err
		}
	}
	w.log.Debug("file updated", zap.String("id", id), zap.Int("size", len(content)))
	w.UpdatedAt = time.Now()
	return w.store.Read(id)
}

// Annotate analyzes the content of id and stores the result as metadata.
func (w *Workspace) Annotate(ctx context.Context, id string, an *analysis.Analyzer) (*analysis.Result, error) {
	rec, err := w.store.Read(id)
	if err != nil {
		return nil, err
	}
	content, err := w.store.Content(id)
	if err != nil {
		return nil, err
	}
	src, err := an.OpenSource(rec.Name, content)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", rec.Name, err)
	}
	res, err := an.AnalyzeSource(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", rec.Name, err)
	}
	res.Name = rec.Name

	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	types := make([]string, 0, len(res.ColumnOrder))
	for _, c := range res.OrderedColumns() {
		types = append(types, c.Name+":"+string(c.DataType))
	}
	meta := map[string]string{
		MetaRowCount:    strconv.Itoa(res.RowCount),
		MetaColumnCount: strconv.Itoa(res.ColumnCount),
		MetaColumnTypes: strings.Join(types, ","),
		MetaTruncated:   strconv.FormatBool(res.Truncated),
		MetaAnalysis:    string(encoded),
	}
	if res.SQL != nil {
		meta[MetaCreateTable] = res.SQL.CreateTable
		meta[MetaInsertTemplate] = res.SQL.InsertTemplate
	}
	for k, v := range meta {
		if err := w.store.SetMetadata(id, k, v); err != nil {
			return nil, err
		}
	}
	w.log.Debug("file annotated",
		zap.String("id", id),
		zap.Int("rows", res.RowCount),
		zap.Int("columns", res.ColumnCount),
	)
	return res, nil
}

// Analysis decodes the stored analysis result of id.
func (w *Workspace) Analysis(id string) (*analysis.Result, error) {
	raw, err := w.store.GetMetadata(id, MetaAnalysis)
	if err != nil {
		return nil, err
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &res, nil
}
