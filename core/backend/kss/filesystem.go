package kss

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harman-mundh/localcommunity/core/logger"
)

const (
	blobFile        = "file"
	contentTypeFile = "content-type"
)

// LocalFilesystem stores every key as a folder below the base folder,
// holding the blob and its content type
type LocalFilesystem struct {
	baseFolder string
}

// NewLocalFilesystem returns a new LocalFilesystem. The base folder is created
// if it does not exist.
func NewLocalFilesystem(config LocalConfiguration) (*LocalFilesystem, error) {
	if config.BasePath == "" {
		return nil, errors.New("BasePath must not be empty")
	}
	if err := os.MkdirAll(config.BasePath, 0700); err != nil {
		return nil, err
	}
	logger.Default().Debugln("KSS local filesystem enabled in", config.BasePath)
	return &LocalFilesystem{baseFolder: config.BasePath}, nil
}

// Put stores data under key, replacing any previous blob
func (f *LocalFilesystem) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	folder := filepath.Join(f.baseFolder, key)
	if err := os.MkdirAll(folder, 0700); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(folder, blobFile))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err = io.Copy(dst, data); err != nil {
		return err
	}
	logger.FromContext(ctx).Infof("Filesystem: stored key '%s'", key)
	return os.WriteFile(filepath.Join(folder, contentTypeFile), []byte(contentType), 0600)
}

// Open returns a reader for the blob stored under key
func (f *LocalFilesystem) Open(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	if err := validKey(key); err != nil {
		return nil, Info{}, err
	}
	folder := filepath.Join(f.baseFolder, key)
	file, err := os.Open(filepath.Join(folder, blobFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Info{}, ErrNotFound
	}
	if err != nil {
		return nil, Info{}, err
	}
	info := Info{}
	if stat, err := file.Stat(); err == nil {
		info.Size = stat.Size()
	}
	if contentType, err := os.ReadFile(filepath.Join(folder, contentTypeFile)); err == nil {
		info.ContentType = strings.TrimSpace(string(contentType))
	}
	return file, info, nil
}

// Delete deletes the key folder
func (f *LocalFilesystem) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	folder := filepath.Join(f.baseFolder, key)
	if _, err := os.Stat(folder); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return os.RemoveAll(folder)
}
