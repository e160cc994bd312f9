// Package storage provides filesystem blob storage for attachments.
package storage

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage manages attachment filesystem operations.
// Thread-safe for concurrent operations.
// Files are namespaced per team: {basePath}/attachments/{teamID}/{filename},
// so one tenant's blobs can never shadow or overwrite another's.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a new Storage instance.
// basePath should be the data directory (e.g., ~/Quoteline/data).
// Attachments will be stored in {basePath}/attachments/.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	storagePath := filepath.Join(basePath, "attachments")

	// Create directory if it doesn't exist.
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	return &Storage{
		basePath: storagePath,
	}, nil
}

// Save stores attachment data under the team's namespace and returns the
// storage path relative to that namespace.
func (s *Storage) Save(teamID, filename string, data []byte) (string, error) {
	if teamID == "" {
		return "", fmt.Errorf("team ID cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("attachment data cannot be empty")
	}

	name := SanitizeFilename(filename)

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, teamID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create team directory: %w", err)
	}

	// Write file with appropriate permissions.
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write attachment file: %w", err)
	}

	return name, nil
}

// Get retrieves attachment data from the team's namespace.
func (s *Storage) Get(teamID, storagePath string) ([]byte, error) {
	path, err := s.resolve(teamID, storagePath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("attachment not found at %s: %w", storagePath, err)
		}
		return nil, fmt.Errorf("failed to read attachment file: %w", err)
	}

	return data, nil
}

// Exists checks if an attachment exists in the team's namespace.
func (s *Storage) Exists(teamID, storagePath string) bool {
	path, err := s.resolve(teamID, storagePath)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(path)
	return err == nil
}

// Delete removes an attachment from the team's namespace.
func (s *Storage) Delete(teamID, storagePath string) error {
	path, err := s.resolve(teamID, storagePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error.
			return nil
		}
		return fmt.Errorf("failed to delete attachment file: %w", err)
	}

	return nil
}

// Hash computes SHA256 hash of an attachment.
// Returns hex-encoded string for ETag/cache validation.
func (s *Storage) Hash(teamID, storagePath string) (string, error) {
	data, err := s.Get(teamID, storagePath)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// resolve builds the absolute path for a stored attachment and rejects
// paths that would escape the team's namespace.
func (s *Storage) resolve(teamID, storagePath string) (string, error) {
	if teamID == "" {
		return "", fmt.Errorf("team ID cannot be empty")
	}
	if storagePath == "" {
		return "", fmt.Errorf("storage path cannot be empty")
	}

	dir := filepath.Join(s.basePath, teamID)
	path := filepath.Join(dir, storagePath)
	if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("storage path %q escapes team namespace", storagePath)
	}
	return path, nil
}

// SanitizeFilename strips path components and replaces characters that are
// unsafe on common filesystems. An empty or fully stripped name becomes
// "attachment".
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), ". ")
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}

// MIMEFromExtension returns the content type for a filename based on its
// extension. Unknown extensions map to application/octet-stream.
func MIMEFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
