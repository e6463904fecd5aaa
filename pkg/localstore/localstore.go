// Package localstore keeps proof files on the local filesystem.
package localstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store saves uploads under a base directory and serves them from a base URL.
type Store struct {
	basePath string
	baseURL  string
	logger   zerolog.Logger
}

// New creates the base directory when missing.
func New(basePath, baseURL string, logger zerolog.Logger) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage directory must not be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &Store{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.With().Str("component", "localstore").Logger(),
	}, nil
}

// Upload writes the content under a collision-free name inside folder and returns its URL and key.
func (s *Store) Upload(ctx context.Context, folder, name string, reader io.Reader) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	folder = sanitizeFolder(folder)
	dir := filepath.Join(s.basePath, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	fileName := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	dstPath := filepath.Join(dir, fileName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, reader); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", "", fmt.Errorf("failed to save file content: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return "", "", fmt.Errorf("failed to save file content: %w", err)
	}

	key := path.Join(folder, fileName)
	url := s.baseURL + "/" + key

	s.logger.Info().Str("filename", name).Str("key", key).Msg("file saved")
	return url, key, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return fmt.Errorf("invalid file key: %q", key)
	}

	physical := filepath.Join(s.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.Remove(physical); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Dir returns the directory served under the base URL.
func (s *Store) Dir() string {
	return s.basePath
}

func sanitizeFolder(folder string) string {
	parts := strings.Split(strings.Trim(folder, "/"), "/")
	kept := parts[:0]
	for _, part := range parts {
		part = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' || r == '@' {
				return r
			}
			return '-'
		}, part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
