// Package storage keeps uploaded files (ticket screenshots, avatars,
// documents) on local disk and serves them back under /uploads/.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"infinitetms/internal/apperr"
)

const URLPrefix = "/uploads/"

type Upload struct {
	Filename string
	Content  io.Reader
}

type LocalStore struct {
	root     string
	maxBytes int64
}

func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: root, maxBytes: maxBytes}, nil
}

// Save writes up into dir under a fresh name and returns its public path,
// e.g. /uploads/screenshots/<uuid>.png.
func (s *LocalStore) Save(ctx context.Context, dir string, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir = path.Clean("/" + dir)[1:]
	if dir == "" || strings.Contains(dir, "..") {
		return "", apperr.Validation("invalid upload directory")
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if len(ext) > 10 {
		ext = ""
	}
	name := uuid.NewString() + ext

	full := filepath.Join(s.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	dst := filepath.Join(full, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	src := up.Content
	if s.maxBytes > 0 {
		src = io.LimitReader(up.Content, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = apperr.Validation(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return URLPrefix + dir + "/" + name, nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *LocalStore) Remove(publicPath string) error {
	rel, ok := strings.CutPrefix(publicPath, URLPrefix)
	if !ok || strings.Contains(rel, "..") {
		return apperr.Validation("not an upload path")
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.root)))
}
