package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

// tempSuffix ends the name of every file Save writes before renaming it.
const tempSuffix = ".tmp"

// tempName returns a fresh temporary name for an in-flight write of name.
func tempName(name string) string {
	return "." + name + "." + uuid.NewString() + tempSuffix
}

// IsTemp reports whether name looks like one of Save's temporary files.
// Such files may show up in a directory listing while a write is in flight.
func IsTemp(name string) bool {
	return len(name) > len("."+tempSuffix) &&
		strings.HasPrefix(name, ".") &&
		strings.HasSuffix(name, tempSuffix)
}

// Storage provides the filesystem side of thumbnail generation.
// It operates on file names inside a single base directory and retries
// every mutation according to the configured strategy.
type Storage struct {
	basePath string
	strategy retry.Strategy
}

// NewStorage creates a new Storage rooted at basePath.
// A strategy with fewer than one attempt is treated as a single attempt.
func NewStorage(basePath string, s retry.Strategy) *Storage {
	if s.Attempts < 1 {
		s.Attempts = 1
	}
	if s.Backoff <= 0 {
		s.Backoff = 1
	}

	return &Storage{basePath: basePath, strategy: s}
}

// Path returns the full path of name inside the base directory.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// Open opens the named file for reading.
func (s *Storage) Open(name string) (*os.File, error) {
	return os.Open(s.Path(name))
}

// Save writes data to name, replacing whatever is there.
//
// The bytes go to a temporary file in the same directory which is then
// renamed over name. A symlink at name is replaced, never followed.
func (s *Storage) Save(name string, data []byte) (int64, error) {
	dst := s.Path(name)

	err := retry.Do(func() error {
		tmp := s.Path(tempName(name))

		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to write temp file %s: %w", tmp, err)
		}

		if err := os.Rename(tmp, dst); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to rename %s to %s: %w", tmp, dst, err)
		}

		return nil
	}, s.strategy)
	if err != nil {
		return 0, fmt.Errorf("failed to save file %s: %w", dst, err)
	}

	return int64(len(data)), nil
}

// Link creates a relative symlink at name pointing to target.
// An existing symlink at name is replaced; any other existing entry is an error.
func (s *Storage) Link(target, name string) error {
	dst := s.Path(name)

	err := retry.Do(func() error {
		err := os.Symlink(target, dst)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			return err
		}

		info, lerr := os.Lstat(dst)
		if lerr != nil {
			return lerr
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return err
		}

		if err := os.Remove(dst); err != nil {
			return err
		}

		return os.Symlink(target, dst)
	}, s.strategy)
	if err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", dst, target, err)
	}

	return nil
}

// RemoveLinkTo deletes name if it is a symlink resolving to the same file as
// target. Dangling links and links to other files are left in place.
// It reports whether anything was removed.
func (s *Storage) RemoveLinkTo(name, target string) (bool, error) {
	dst := s.Path(name)

	info, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", dst, err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return false, nil
	}

	linked, err := os.Stat(dst)
	if err != nil {
		// Dangling link.
		return false, nil
	}

	src, err := os.Stat(s.Path(target))
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", s.Path(target), err)
	}

	if !os.SameFile(linked, src) {
		return false, nil
	}

	if err := s.remove(dst); err != nil {
		return false, err
	}

	return true, nil
}

// RemoveFile deletes name if it is a regular file.
// It reports whether anything was removed.
func (s *Storage) RemoveFile(name string) (bool, error) {
	dst := s.Path(name)

	info, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", dst, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}

	if err := s.remove(dst); err != nil {
		return false, err
	}

	return true, nil
}

func (s *Storage) remove(path string) error {
	err := retry.Do(func() error {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}, s.strategy)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
