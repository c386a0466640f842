package sim

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// Library is the storage the cart loader serves carts from. Names are slash
// separated and relative to the library's root.
type Library interface {
	// ReadDir returns the names of the directories in dir.
	ReadDir(dir string) ([]string, error)
	Open(name string) (File, error)
	OpenFile(name string, writable bool) (File, error)
}

// File is a file opened from a Library.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Size() (int64, error)
	Sync() error
}

var ErrBadPath = errors.New("sim: path escapes library")

// cleanJoin joins elem relative to dir, refusing to leave dir.
func cleanJoin(dir string, elem ...string) (string, error) {
	rel := path.Clean("/" + path.Join(elem...))
	for _, e := range elem {
		for _, part := range strings.Split(e, "/") {
			if part == ".." {
				return "", ErrBadPath
			}
		}
	}
	return path.Join(dir, strings.TrimPrefix(rel, "/")), nil
}

// DirLibrary serves a library from a host directory.
type DirLibrary struct {
	root *os.Root
}

func OpenDir(dir string) (*DirLibrary, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &DirLibrary{root}, nil
}

func (l *DirLibrary) Close() error { return l.root.Close() }

func (l *DirLibrary) ReadDir(dir string) ([]string, error) {
	f, err := l.root.Open(orDot(dir))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *DirLibrary) Open(name string) (File, error) {
	return l.OpenFile(name, false)
}

func (l *DirLibrary) OpenFile(name string, writable bool) (File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := l.root.OpenFile(orDot(name), flag, 0)
	if err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err != nil || fi.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return osFile{f}, nil
}

func orDot(name string) string {
	if name == "" || name == "/" {
		return "."
	}
	return strings.TrimPrefix(name, "/")
}

type osFile struct {
	*os.File
}

func (f osFile) Size() (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
