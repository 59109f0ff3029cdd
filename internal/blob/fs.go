package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FilesystemStore implements Store using the local filesystem. Keys map to
// relative file paths under the root; a sidecar file (key + ".meta") stores
// content type and user metadata. Not concurrent-writer safe beyond per-file
// creation.
type FilesystemStore struct {
	root string
}

// NewFilesystem returns a filesystem-backed blob store rooted at path,
// creating it if needed.
func NewFilesystem(root string) (*FilesystemStore, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemStore{root: root}, nil
}

// Driver returns the blob driver identifier.
func (s *FilesystemStore) Driver() Driver { return DriverFilesystem }

// sanitizeKey forbids path traversal and absolute paths.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key traversal")
	}
	return clean, nil
}

func (s *FilesystemStore) pathFor(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, k)
	metaPath = dataPath + ".meta"
	return
}

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Put stores a new blob; errors if the key already exists.
func (s *FilesystemStore) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, err
	}
	f, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Info{}, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dataPath)
		return Info{}, err
	}
	now := time.Now().UTC()
	meta := metaFile{ContentType: opts.ContentType, Metadata: cloneMetadata(opts.Metadata), Size: size, CreatedAt: now}
	encoded, err := json.Marshal(meta)
	if err != nil {
		_ = os.Remove(dataPath)
		return Info{}, err
	}
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		_ = os.Remove(dataPath)
		return Info{}, err
	}
	return Info{Key: key, Size: size, ContentType: opts.ContentType, Metadata: cloneMetadata(opts.Metadata), LastModified: now}, nil
}

func (s *FilesystemStore) readMeta(metaPath string) (metaFile, error) {
	var meta metaFile
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// Get returns blob metadata and an open reader over the file.
func (s *FilesystemStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	dataPath, _, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return Info{}, nil, err
	}
	return info, f, nil
}

// Head returns blob metadata only.
func (s *FilesystemStore) Head(_ context.Context, key string) (Info, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	stat, err := os.Stat(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return Info{}, err
	}
	meta, err := s.readMeta(metaPath)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  meta.ContentType,
		Metadata:     cloneMetadata(meta.Metadata),
		LastModified: stat.ModTime().UTC(),
	}, nil
}

// Delete removes the blob and its sidecar, reporting whether it existed.
func (s *FilesystemStore) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root returning blobs whose keys match prefix, in key order.
func (s *FilesystemStore) List(ctx context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.Head(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
