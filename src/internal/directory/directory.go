// FILE: logfan/src/internal/directory/directory.go
package directory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrNotIncluded is returned when rotating a file outside the include list.
var ErrNotIncluded = errors.New("file not in include list")

// Directory selects the files that take part in rotation and rotates them.
type Directory interface {
	IncludeList() ([]string, error)
	IncludeListToString() string
	BackupFiles(active string) error
}

// File is an append-only log file.
type File interface {
	Append(p []byte) error
	Size() int64
	Path() string
	Close() error
}

// Local is a Directory over one filesystem directory. Backups are numbered
// name.1 (newest) to name.N (oldest).
type Local struct {
	dir        string
	include    []string
	exclude    []string
	maxBackups int
}

// NewLocal creates a Local. An empty include list matches every file.
func NewLocal(dir string, include, exclude []string, maxBackups int) (*Local, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if len(include) == 0 {
		include = []string{"*"}
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	return &Local{
		dir:        dir,
		include:    include,
		exclude:    exclude,
		maxBackups: maxBackups,
	}, nil
}

// Dir returns the directory path.
func (l *Local) Dir() string {
	return l.dir
}

// IncludeList returns the sorted base names of regular files matching an
// include pattern and no exclude pattern. Numbered backups are skipped.
func (l *Local) IncludeList() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", l.dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if isBackupName(name) {
			continue
		}
		if l.included(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// IncludeListToString renders the include and exclude patterns for diagnostics.
func (l *Local) IncludeListToString() string {
	s := "include=" + strings.Join(l.include, ",")
	if len(l.exclude) > 0 {
		s += " exclude=" + strings.Join(l.exclude, ",")
	}
	return s
}

// BackupFiles shifts existing backups of active up by one, moves active to
// active.1 and removes backups beyond the retention count.
func (l *Local) BackupFiles(active string) error {
	base := filepath.Base(active)
	if !l.included(base) {
		return fmt.Errorf("%w: %s", ErrNotIncluded, base)
	}
	path := filepath.Join(l.dir, base)

	if l.maxBackups == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}

	oldest := backupName(path, l.maxBackups)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", oldest, err)
	}
	for i := l.maxBackups - 1; i >= 1; i-- {
		from := backupName(path, i)
		if err := os.Rename(from, backupName(path, i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate %s: %w", from, err)
		}
	}
	if err := os.Rename(path, backupName(path, 1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate %s: %w", path, err)
	}
	return nil
}

// Open opens name inside the directory for appending.
func (l *Local) Open(name string) (*LocalFile, error) {
	return OpenFile(filepath.Join(l.dir, filepath.Base(name)))
}

func (l *Local) included(name string) bool {
	for _, p := range l.exclude {
		if ok, _ := filepath.Match(p, name); ok {
			return false
		}
	}
	for _, p := range l.include {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func backupName(path string, n int) string {
	return path + "." + strconv.Itoa(n)
}

func isBackupName(name string) bool {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return false
	}
	_, err := strconv.Atoi(ext[1:])
	return err == nil
}

// LocalFile is a File backed by an os.File. Appends are serialized.
type LocalFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
	size int64
}

// OpenFile opens or creates path in append mode.
func OpenFile(path string) (*LocalFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &LocalFile{f: f, path: path, size: info.Size()}, nil
}

// Append writes p in a single write call.
func (lf *LocalFile) Append(p []byte) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return os.ErrClosed
	}
	n, err := lf.f.Write(p)
	lf.size += int64(n)
	return err
}

func (lf *LocalFile) Size() int64 {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.size
}

func (lf *LocalFile) Path() string {
	return lf.path
}

// Sync flushes the file to disk.
func (lf *LocalFile) Sync() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	return lf.f.Sync()
}

func (lf *LocalFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}
