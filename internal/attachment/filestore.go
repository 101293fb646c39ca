package attachment

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes uploads below an uploads directory
type FileStore struct {
	uploadsDir string
}

// NewFileStore creates a new file store
func NewFileStore(uploadsDir string) *FileStore {
	return &FileStore{
		uploadsDir: uploadsDir,
	}
}

// Save writes content at the generated relative path and returns the absolute location
func (fs *FileStore) Save(relPath string, content io.Reader) (_ string, err error) {
	target, err := fs.resolve(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	if _, err := io.Copy(file, content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return target, nil
}

// SaveBytes is Save for in-memory uploads
func (fs *FileStore) SaveBytes(relPath string, data []byte) (string, error) {
	return fs.Save(relPath, bytes.NewReader(data))
}

// Remove deletes a stored file; missing files are not an error
func (fs *FileStore) Remove(relPath string) error {
	target, err := fs.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (fs *FileStore) resolve(relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid upload path %q", relPath)
	}
	return filepath.Join(fs.uploadsDir, clean), nil
}

// CheckSize enforces a parameter's size limit in kilobytes; zero means unlimited
func CheckSize(size int64, limitKB int) error {
	if limitKB <= 0 {
		return nil
	}
	if size > int64(limitKB)*1024 {
		return fmt.Errorf("file is %d bytes, limit is %d KB", size, limitKB)
	}
	return nil
}
