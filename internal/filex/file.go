// Package filex holds file helpers for the CLI: the session directory and
// reading images before upload.
package filex

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxImageSize bounds the files ReadImage accepts.
const MaxImageSize = 10 << 20

var (
	ErrTooLarge = errors.New("file too large")
	ErrNotImage = errors.New("not an image")
)

// EnsureSubDir creates dirName under the working directory if needed and
// returns its absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ReadImage reads path and sniffs its content type. Files larger than
// MaxImageSize or not sniffed as image/* are rejected.
func ReadImage(path string) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if fi.Size() > MaxImageSize {
		return nil, "", fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%s is %s: %w", path, contentType, ErrNotImage)
	}
	return data, contentType, nil
}
