//go:build darwin

package shmregion

/*
#include <fcntl.h>
#include <sys/mman.h>
#include <sys/stat.h>
#include <unistd.h>
*/
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// openOrCreate implements the Darwin backend via POSIX shm_open, named
// "/horus.<name>". macOS shared-memory objects are not addressable as
// regular filesystem paths, so rt.ShmRoot is not consulted here: the
// name is treated as opaque, and callers must not assume a filesystem
// path exists for a topic. x/sys/unix has no shm_open binding on
// darwin, so this calls the libc function directly via cgo.
func openOrCreate(_ *runtime.Runtime, name string, size int, ownerHint bool) (*Region, error) {
	shmName := "/horus." + name
	cName := C.CString(shmName)
	defer C.free(unsafe.Pointer(cName))

	fd, errno := C.shm_open(cName, C.O_RDWR|C.O_CREAT, 0o644)
	if fd < 0 {
		return nil, herrors.New(herrors.SharedMemory, "shm_open", name, errno)
	}
	defer C.close(fd)

	var st C.struct_stat
	if _, err := C.fstat(fd, &st); err != nil {
		return nil, herrors.New(herrors.SharedMemory, "fstat", name, err)
	}
	existed := int64(st.st_size) != 0
	if existed {
		if int(st.st_size) != size {
			return nil, sizeMismatch(name, size, int(st.st_size))
		}
	} else if _, err := C.ftruncate(fd, C.off_t(size)); err != nil {
		return nil, herrors.New(herrors.SharedMemory, "ftruncate", name, err)
	}

	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, herrors.New(herrors.SharedMemory, "mmap", name, err)
	}

	r := &Region{Name: name, Size: size, Bytes: data, owner: ownerHint}
	r.closer = func() error {
		if err := unix.Munmap(data); err != nil {
			return err
		}
		if ownerHint {
			if _, err := C.shm_unlink(cName); err != nil {
				return fmt.Errorf("shmregion: shm_unlink %s: %w", shmName, err)
			}
		}
		return nil
	}
	return r, nil
}

// IsProcessRunning sends signal 0, the standard liveness probe on
// POSIX systems with no side effects on the target process.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(unix.Signal(0)) == nil
}
