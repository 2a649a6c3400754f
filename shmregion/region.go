// Package shmregion maps a (topic-name, size) pair to a raw writable
// byte region shared across processes. Three OS backends
// (region_linux.go, region_darwin.go, region_windows.go) share this
// file's Region type and OpenOrCreate contract, selected at compile
// time via build tags.
package shmregion

import (
	"fmt"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// Region is a named, RAM-backed, fixed-size byte mapping. Size is fixed
// at creation and never grows.
type Region struct {
	Name  string
	Size  int
	Bytes []byte
	owner bool

	closer func() error
}

// Bytes are valid for the lifetime of the Region; callers must not
// retain slices derived from it past Close.
func (r *Region) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c()
}

// Owner reports whether this handle unlinks the backing object on
// Close. On Linux and Darwin the unlink happens at this handle's Close
// whether or not other handles still map the region: their existing
// mappings stay valid, but a later OpenOrCreate of the same name creates
// a fresh, zeroed region. The Windows backend never unlinks; its mapping
// lives until the last handle to it is closed.
func (r *Region) Owner() bool { return r.owner }

func sizeMismatch(topic string, want, got int) error {
	return herrors.New(herrors.SharedMemory, "open_or_create", topic,
		fmt.Errorf("region exists with size %d, requested %d", got, want))
}

// OpenOrCreate is the cross-platform entry point; it delegates to the
// OS-specific openOrCreate implementation compiled in for this target.
func OpenOrCreate(rt *runtime.Runtime, name string, size int, ownerHint bool) (*Region, error) {
	if name == "" {
		return nil, herrors.New(herrors.InvalidInput, "open_or_create", name, fmt.Errorf("empty topic name"))
	}
	if size <= 0 {
		return nil, herrors.New(herrors.InvalidInput, "open_or_create", name, fmt.Errorf("non-positive size %d", size))
	}
	return openOrCreate(rt, name, size, ownerHint)
}
