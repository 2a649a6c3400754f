//go:build linux

package shmregion

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// openOrCreate implements the Linux backend: a file under
// <shm_root>/topics/<name> on tmpfs (typically /dev/shm/horus/topics),
// mmap'd MAP_SHARED. Zero-initialized on first creation because tmpfs
// files start zero-filled and we only grow via Truncate.
func openOrCreate(rt *runtime.Runtime, name string, size int, ownerHint bool) (*Region, error) {
	path := rt.TopicPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, herrors.New(herrors.SharedMemory, "open_or_create", name, err)
	}

	existed := false
	if fi, err := os.Stat(path); err == nil {
		existed = true
		if int(fi.Size()) != size {
			return nil, sizeMismatch(name, size, int(fi.Size()))
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, herrors.New(herrors.SharedMemory, "open_or_create", name, err)
	}
	defer f.Close()

	if !existed {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, herrors.New(herrors.SharedMemory, "open_or_create", name, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, herrors.New(herrors.SharedMemory, "mmap", name, err)
	}

	r := &Region{Name: name, Size: size, Bytes: data, owner: ownerHint}
	r.closer = func() error {
		if err := unix.Munmap(data); err != nil {
			return err
		}
		if ownerHint {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("shmregion: unlink %s: %w", path, err)
			}
		}
		return nil
	}
	return r, nil
}

// IsProcessRunning distinguishes "owner crashed, safe to reclaim" from
// "owner alive, respect the region" using the /proc filesystem.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.Stat(filepath.Join("/proc", fmt.Sprint(pid)))
	return err == nil
}
