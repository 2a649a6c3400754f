//go:build windows

package shmregion

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// openOrCreate implements the Windows backend via a page-file-backed
// file mapping named "Local\horus.<name>".
func openOrCreate(_ *runtime.Runtime, name string, size int, ownerHint bool) (*Region, error) {
	mapName := `Local\horus.` + name
	namePtr, err := windows.UTF16PtrFromString(mapName)
	if err != nil {
		return nil, herrors.New(herrors.InvalidInput, "open_or_create", name, err)
	}

	// Opening an existing mapping first lets us distinguish "created"
	// from "attached" the way the Linux/Darwin paths do via file size.
	existingHandle, openErr := windows.OpenFileMapping(windows.FILE_MAP_ALL_ACCESS, false, namePtr)
	existed := openErr == nil

	var handle windows.Handle
	if existed {
		handle = existingHandle
	} else {
		handle, err = windows.CreateFileMapping(
			windows.InvalidHandle, // page-file backed, not a real file
			nil,
			windows.PAGE_READWRITE,
			0, uint32(size),
			namePtr,
		)
		if err != nil {
			return nil, herrors.New(herrors.SharedMemory, "CreateFileMappingW", name, err)
		}
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_ALL_ACCESS, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, herrors.New(herrors.SharedMemory, "MapViewOfFile", name, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	r := &Region{Name: name, Size: size, Bytes: data, owner: ownerHint}
	r.closer = func() error {
		if err := windows.UnmapViewOfFile(addr); err != nil {
			return fmt.Errorf("shmregion: UnmapViewOfFile: %w", err)
		}
		return windows.CloseHandle(handle)
	}
	return r, nil
}

// IsProcessRunning opens the process with minimal rights and checks its
// exit code; STILL_ACTIVE means the owner is alive.
func IsProcessRunning(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}
