package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/ssargent/sysconf/pkg/logging"
	"golang.org/x/sys/unix"
)

// File reads and writes a SYSCONF image at a fixed path. Each call opens the
// file, holds an advisory lock for the duration of the transfer and releases
// both on every exit path.
type File struct {
	path   string
	logger *log.Logger
}

// NewFile creates a file handle for path
func NewFile(path string, logger *log.Logger) *File {
	return &File{path: path, logger: logging.OrDiscard(logger)}
}

// Path returns the file path
func (f *File) Path() string {
	return f.path
}

// ReadExact reads the whole file, which must be exactly length bytes
func (f *File) ReadExact(length int) ([]byte, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN) //nolint:errcheck

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() != int64(length) {
		return nil, fmt.Errorf("%s is %d bytes, want %d", f.path, stat.Size(), length)
	}

	data := make([]byte, length)
	n, err := io.ReadFull(file, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: got %d of %d bytes: %w", f.path, n, length, err)
	}

	f.logger.Debug().Str("path", f.path).Int("bytes", n).Msg("read sysconf")
	return data, nil
}

// WriteExact replaces the file contents with data. The image is written to
// a temporary file in the same directory, fsynced and renamed over the
// target, so readers see either the old or the new image and never a mix.
func (f *File) WriteExact(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	target, err := f.lockTarget()
	if err != nil {
		return err
	}
	defer target.Close()
	defer unix.Flock(int(target.Fd()), unix.LOCK_UN) //nolint:errcheck

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0600); err != nil {
		return err
	}
	n, err := tmp.Write(data)
	if err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if n != len(data) {
		return fmt.Errorf("write %s: wrote %d of %d bytes", tmpPath, n, len(data))
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	renamed = true

	if err := syncDir(dir); err != nil {
		return err
	}

	f.logger.Debug().Str("path", f.path).Int("bytes", n).Msg("wrote sysconf")
	return nil
}

// lockTarget takes the exclusive lock on the file currently at f.path. A
// concurrent writer may rename a new image into place while we wait, so the
// lock only counts once the locked inode is still the one at the path.
func (f *File) lockTarget() (*os.File, error) {
	for {
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDONLY, 0600)
		if err != nil {
			return nil, err
		}
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
			file.Close()
			return nil, fmt.Errorf("lock %s: %w", f.path, err)
		}

		locked, err := file.Stat()
		if err != nil {
			unix.Flock(int(file.Fd()), unix.LOCK_UN) //nolint:errcheck
			file.Close()
			return nil, err
		}
		current, err := os.Stat(f.path)
		if err == nil && os.SameFile(locked, current) {
			return file, nil
		}

		unix.Flock(int(file.Fd()), unix.LOCK_UN) //nolint:errcheck
		file.Close()
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}
