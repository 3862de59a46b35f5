package sbom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

const (
	fileMode = 0o644
	dirMode  = os.ModeDir | 0o755
)

// Store reads and writes SBOM documents. Locations are local paths or any
// URL the underlying afs service understands.
type Store struct {
	fs afs.Service
}

func NewStore() *Store {
	return &Store{
		fs: afs.New(),
	}
}

func NewStoreWith(service afs.Service) *Store {
	return &Store{
		fs: service,
	}
}

// DocumentPath is where the custom software SBOM of a project lives.
func DocumentPath(outputDirectory, projectName string) string {
	return filepath.Join(outputDirectory, projectName, CustomSoftwareSbomName)
}

func location(where string) string {
	if strings.Contains(where, "://") || filepath.IsAbs(where) {
		return where
	}
	absolute, err := filepath.Abs(where)
	if err != nil {
		return where
	}
	return absolute
}

func parent(where string) string {
	if strings.Contains(where, "://") {
		return path.Dir(where)
	}
	return filepath.Dir(where)
}

func (it *Store) Exists(ctx context.Context, where string) bool {
	exists, err := it.fs.Exists(ctx, location(where))
	return err == nil && exists
}

// Save writes document as indented JSON, creating the parent directory first.
func (it *Store) Save(ctx context.Context, where string, document *Document) error {
	content, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding SBOM document: %w", err)
	}
	return it.Write(ctx, where, content)
}

// Write stores raw content, creating the parent directory first.
func (it *Store) Write(ctx context.Context, where string, content []byte) error {
	target := location(where)
	folder := parent(target)
	if !it.Exists(ctx, folder) {
		if err := it.fs.Create(ctx, folder, dirMode, true); err != nil {
			return fmt.Errorf("creating directory %s: %w", folder, err)
		}
	}
	if err := it.fs.Upload(ctx, target, fileMode, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

func (it *Store) Read(ctx context.Context, where string) ([]byte, error) {
	target := location(where)
	content, err := it.fs.DownloadWithURL(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	return content, nil
}

func (it *Store) Load(ctx context.Context, where string) (*Document, error) {
	content, err := it.Read(ctx, where)
	if err != nil {
		return nil, err
	}
	document, err := ParseDocument(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return document, nil
}

func (it *Store) LoadFragment(ctx context.Context, where string) (*Fragment, error) {
	content, err := it.Read(ctx, where)
	if err != nil {
		return nil, err
	}
	fragment, err := ParseFragment(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return fragment, nil
}
