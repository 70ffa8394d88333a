package service

import (
	"context"

	"infinitetms/internal/storage"
)

// FileStore is the part of storage.LocalStore the services need.
type FileStore interface {
	Save(ctx context.Context, dir string, up storage.Upload) (string, error)
	Remove(publicPath string) error
}

const (
	dirScreenshots = "screenshots"
	dirAvatars     = "avatars"
	dirDocuments   = "documents"
)
