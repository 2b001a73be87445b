package mempool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Disk represents a mempool folder where every regular file holds one raw
// transaction. This implements the Source interface.
type Disk struct {
	dir string
}

// NewDisk constructs a disk source for the specified folder. The folder must
// exist.
func NewDisk(dir string) (*Disk, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	return &Disk{dir: dir}, nil
}

// List implements the Source interface. Handles are the file names in
// lexical order. Sub folders and hidden files are skipped.
func (d *Disk) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var handles []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		name := entry.Name()
		if entry.IsDir() || name[0] == '.' {
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		handles = append(handles, name)
	}

	return handles, nil
}

// Read implements the Source interface.
func (d *Disk) Read(ctx context.Context, handle string) ([]byte, error) {
	if err := checkHandle(handle); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(d.dir, handle))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("handle %q: %w", handle, ErrNotFound)
	}

	return data, err
}

// Upsert writes the raw transaction to a file named by the handle. The file
// is renamed into place so List never sees a partial write.
func (d *Disk) Upsert(handle string, data []byte) (int, error) {
	if err := checkHandle(handle); err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(d.dir, ".upsert-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, err
	}

	if err := f.Close(); err != nil {
		return 0, err
	}

	if err := os.Rename(f.Name(), filepath.Join(d.dir, handle)); err != nil {
		return 0, err
	}

	handles, err := d.List(context.Background())
	if err != nil {
		return 0, err
	}

	return len(handles), nil
}

// Delete removes the file for the handle.
func (d *Disk) Delete(handle string) error {
	if err := checkHandle(handle); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(d.dir, handle))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("handle %q: %w", handle, ErrNotFound)
	}

	return err
}
