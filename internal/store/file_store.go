package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/username/school-status/internal/calendar"
	"go.uber.org/zap"
)

// FileStore reads documents from a directory tree:
// <root>/<calendarType>/<year>/<category>.json and <root>/<category>.json
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates a new FileStore rooted at root
func NewFileStore(root string, logger *zap.Logger) *FileStore {
	return &FileStore{
		root:   root,
		logger: logger,
	}
}

// Path returns the file path of key
func (fs *FileStore) Path(key Key) string {
	return filepath.Join(fs.root, key.RelPath())
}

// Read reads the document file for key
func (fs *FileStore) Read(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := fs.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fs.logger.Debug("Document read",
		zap.String("path", path),
		zap.Int("bytes", len(data)))

	return data, nil
}

// ListYears returns the numeric year directories under <root>/<calendarType>
func (fs *FileStore) ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(fs.root, string(calendarType))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list years in %s: %w", dir, err)
	}

	var years []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		year, err := strconv.Atoi(entry.Name())
		if err != nil {
			fs.logger.Warn("Skipping non-year directory",
				zap.String("dir", dir),
				zap.String("name", entry.Name()))
			continue
		}
		years = append(years, year)
	}

	sort.Ints(years)
	return years, nil
}
