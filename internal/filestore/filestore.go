// Package filestore persists deliverable files under a local upload root.
//
// Storage names are derived from a high-resolution timestamp plus a random
// component, never from the caller-supplied file name, which is kept only as
// metadata. Extension checks happen before any byte reaches disk.
package filestore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/aymanebs/emr-api/pkg/errors"

	"github.com/aymanebs/emr-api/internal/model"
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// StoredFile is the reference returned by Store. Path is relative to the
// upload root and is what gets persisted in deliverable metadata.
type StoredFile struct {
	Path string
	Size int64
}

type Store interface {
	Store(data []byte, originalName string, kind model.DeliverableKind) (*StoredFile, error)
	Open(path string) (io.ReadCloser, error)
	URL(path string) string
	Root() string
}

type diskStore struct {
	root      string
	publicURL string
}

// NewDiskStore creates the upload root if absent and returns a Store backed
// by it.
func NewDiskStore(root, publicURL string) (Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &diskStore{root: root, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// AllowedExtension reports whether ext (with leading dot) is accepted for
// the deliverable kind.
func AllowedExtension(ext string, kind model.DeliverableKind) bool {
	ext = strings.ToLower(ext)
	switch kind {
	case model.KindReport:
		return documentExtensions[ext]
	case model.KindImage:
		return imageExtensions[ext]
	}
	return false
}

func (s *diskStore) Store(data []byte, originalName string, kind model.DeliverableKind) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !AllowedExtension(ext, kind) {
		return nil, apperrors.InvalidFormat(ext)
	}

	name, err := generateName(ext)
	if err != nil {
		return nil, apperrors.WriteFailure(err)
	}

	fullPath := filepath.Join(s.root, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		// Drop any partial file so a failed write leaves the root unchanged.
		os.Remove(fullPath)
		return nil, apperrors.WriteFailure(err)
	}

	return &StoredFile{Path: name, Size: int64(len(data))}, nil
}

func (s *diskStore) Open(path string) (io.ReadCloser, error) {
	// The stored reference is always a bare generated name; anything else is
	// a traversal attempt or a stale reference.
	if filepath.Base(path) != path || path == "." || path == "" {
		return nil, apperrors.NotFound("file", nil)
	}
	f, err := os.Open(filepath.Join(s.root, path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NotFound("file", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *diskStore) URL(path string) string {
	return s.publicURL + "/" + path
}

func (s *diskStore) Root() string {
	return s.root
}

func generateName(ext string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), hex.EncodeToString(buf), ext), nil
}
