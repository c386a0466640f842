package sim

import (
	"io"
	"os"
	"path"
	"sort"
	"sync"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

// ImageLibrary serves a library from the FAT32 filesystem of a disk image,
// as created by CreateImage.
type ImageLibrary struct {
	mtx  sync.Mutex // filesystem isn't safe for concurrent use
	disk *disk.Disk
	fs   filesystem.FileSystem
}

func OpenImage(name string) (*ImageLibrary, error) {
	d, err := diskfs.Open(name)
	if err != nil {
		return nil, err
	}
	fs, err := d.GetFilesystem(0) // whole disk
	if err != nil {
		d.File.Close()
		return nil, err
	}
	return &ImageLibrary{disk: d, fs: fs}, nil
}

func (l *ImageLibrary) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.disk.File.Close()
}

func (l *ImageLibrary) ReadDir(dir string) ([]string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	infos, err := l.fs.ReadDir(path.Join("/", dir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() && fi.Name() != "." && fi.Name() != ".." {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *ImageLibrary) Open(name string) (File, error) {
	return l.OpenFile(name, false)
}

func (l *ImageLibrary) OpenFile(name string, writable bool) (File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	f, err := l.fs.OpenFile(path.Join("/", name), flag)
	if err != nil {
		return nil, err
	}
	return &imageFile{lib: l, f: f}, nil
}

// imageFile implements random access on top of the seekable files of the
// filesystem.
type imageFile struct {
	lib *ImageLibrary
	f   filesystem.File
}

func (f *imageFile) ReadAt(p []byte, off int64) (n int, err error) {
	f.lib.mtx.Lock()
	defer f.lib.mtx.Unlock()
	if _, err = f.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err = io.ReadFull(f.f, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return
}

func (f *imageFile) WriteAt(p []byte, off int64) (n int, err error) {
	f.lib.mtx.Lock()
	defer f.lib.mtx.Unlock()
	if _, err = f.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return f.f.Write(p)
}

func (f *imageFile) Size() (int64, error) {
	f.lib.mtx.Lock()
	defer f.lib.mtx.Unlock()
	return f.f.Seek(0, io.SeekEnd)
}

func (f *imageFile) Sync() error { return nil }

func (f *imageFile) Close() error {
	f.lib.mtx.Lock()
	defer f.lib.mtx.Unlock()
	return f.f.Close()
}

// CreateImage creates a disk image of size bytes with an empty FAT32
// filesystem.
func CreateImage(name string, size int64, label string) (*ImageLibrary, error) {
	d, err := diskfs.Create(name, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return nil, err
	}
	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	})
	if err != nil {
		d.File.Close()
		return nil, err
	}
	return &ImageLibrary{disk: d, fs: fs}, nil
}

// Mkdir creates dir and all its parents.
func (l *ImageLibrary) Mkdir(dir string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.fs.Mkdir(path.Join("/", dir))
}

// Create creates or truncates the file name.
func (l *ImageLibrary) Create(name string) (io.WriteCloser, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.fs.OpenFile(path.Join("/", name), os.O_CREATE|os.O_RDWR|os.O_TRUNC)
}
