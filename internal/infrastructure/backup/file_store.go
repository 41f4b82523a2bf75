package backup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// FileStore keeps one "<ASSET>.txt" backup per asset in a directory.
type FileStore struct {
	dir string
}

// NewFileStore opens a store in dir. The directory must already exist.
func NewFileStore(dir string) (*FileStore, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("backup directory %q: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("backup path %q is not a directory", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(assetID string) string {
	return filepath.Join(s.dir, assetID+".txt")
}

func (s *FileStore) Load(ctx context.Context, assetID string) (*domain.BackupRecord, error) {
	fp, err := os.Open(s.path(assetID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrBackupNotFound
		}
		return nil, fmt.Errorf("could not open backup: %w", err)
	}
	defer fp.Close()
	return Decode(fp)
}

// Save replaces the asset's backup atomically through a synced temp file.
func (s *FileStore) Save(ctx context.Context, assetID string, rec *domain.BackupRecord) (status error) {
	fp, err := os.CreateTemp(s.dir, ".backup*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer func() {
		fp.Close()
		if status != nil {
			os.Remove(fp.Name())
		}
	}()

	bw := bufio.NewWriter(fp)
	if err := Encode(bw, rec); err != nil {
		return fmt.Errorf("could not encode backup: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("could not flush the bufio writer: %w", err)
	}
	if err := fp.Sync(); err != nil {
		return fmt.Errorf("could not sync the output file: %w", err)
	}
	if err := os.Rename(fp.Name(), s.path(assetID)); err != nil {
		return fmt.Errorf("could not rename temp file to %q: %w", s.path(assetID), err)
	}
	return nil
}

// List returns the asset ids that have a backup file.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".txt" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".txt"))
	}
	return ids, nil
}
