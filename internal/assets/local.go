package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore кладет ассеты на локальный диск. Используется в разработке и
// тестах вместо Cloudinary; URL собирается из baseURL + относительный путь.
type LocalStore struct {
	rootDir string
	baseURL string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(rootDir, baseURL string) *LocalStore {
	return &LocalStore{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *LocalStore) Store(_ context.Context, data []byte, pathHint string) (string, error) {
	rel := filepath.Clean(pathHint) + ".mp3"
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("localstore: path hint escapes root: %s", pathHint)
	}
	full := filepath.Join(s.rootDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("localstore: failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("localstore: failed to write asset: %w", err)
	}
	return s.baseURL + "/" + filepath.ToSlash(rel), nil
}
