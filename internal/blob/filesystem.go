package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const metaSuffix = ".meta.json"

// FilesystemStore keeps objects under a local root directory. Content type
// and metadata are written to a sidecar file next to each object.
type FilesystemStore struct {
	root string
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "./data/blobs"
	}
	cleanRoot := filepath.Clean(root)
	if err := os.MkdirAll(cleanRoot, 0o750); err != nil {
		return nil, err
	}
	return &FilesystemStore{root: cleanRoot}, nil
}

func (s *FilesystemStore) Put(_ context.Context, key, contentType string, body []byte, metadata map[string]string) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, metaSuffix) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	meta, err := json.Marshal(sidecar{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return err
	}
	if err := writeAtomic(path+metaSuffix, meta); err != nil {
		return err
	}
	return writeAtomic(path, body)
}

func (s *FilesystemStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return data, nil
}

// Metadata returns the content type and metadata recorded for key.
func (s *FilesystemStore) Metadata(key string) (string, map[string]string, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, ErrObjectNotFound
		}
		return "", nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return "", nil, fmt.Errorf("decode metadata for %s: %w", key, err)
	}
	return sc.ContentType, sc.Metadata, nil
}

func writeAtomic(path string, body []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0o640); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (s *FilesystemStore) resolvePath(key string) (string, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	key = strings.TrimPrefix(filepath.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", errors.New("invalid blob key")
	}
	path := filepath.Join(s.root, key)
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", errors.New("invalid blob key path")
	}
	return path, nil
}
