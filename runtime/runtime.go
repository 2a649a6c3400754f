// Package runtime carries the explicit, per-instance state that every
// other horus package needs instead of reaching for process-global
// lookups: the shared-memory root directory that topics, heartbeats,
// parameters, and control files live under.
package runtime

import (
	"os"
	"path/filepath"
)

// DefaultShmRoot is the conventional Linux location. Darwin and Windows
// backends treat the "path" under this root as an opaque name rather
// than a literal filesystem path (see shmregion).
const DefaultShmRoot = "/dev/shm/horus"

// Runtime is handed explicitly to every constructor that needs to find
// a topic, heartbeat, parameter, or control file by name. It holds no
// behavior beyond path composition, which keeps every consumer
// testable against a temp directory.
type Runtime struct {
	ShmRoot string
}

// New returns a Runtime rooted at root. An empty root uses DefaultShmRoot.
func New(root string) *Runtime {
	if root == "" {
		root = DefaultShmRoot
	}
	return &Runtime{ShmRoot: root}
}

// TopicPath returns the path of a Link/Hub backing region for name.
func (r *Runtime) TopicPath(name string) string {
	return filepath.Join(r.ShmRoot, "topics", name)
}

// HeartbeatPath returns the path of the heartbeat file for a node name.
func (r *Runtime) HeartbeatPath(nodeName string) string {
	return filepath.Join(r.ShmRoot, "heartbeats", nodeName)
}

// ParamPath returns the path of the parameter file for key.
func (r *Runtime) ParamPath(key string) string {
	return filepath.Join(r.ShmRoot, "params", key)
}

// ControlPath returns the path of the one-shot control file for a node.
func (r *Runtime) ControlPath(nodeName string) string {
	return filepath.Join(r.ShmRoot, "control", nodeName+".cmd")
}

// NetworkPath returns the path of the per-topic transport-state
// directory used for optional TCP endpoint discovery.
func (r *Runtime) NetworkPath(topic string) string {
	return filepath.Join(r.ShmRoot, "network", topic)
}

// LogPath returns the path of the append-only structured log stream.
func (r *Runtime) LogPath() string {
	return filepath.Join(filepath.Dir(r.ShmRoot), "horus_logs")
}

// EnsureDirs creates every directory this Runtime expects to exist.
func (r *Runtime) EnsureDirs() error {
	for _, d := range r.Dirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Dirs returns every directory this Runtime expects to exist, in the
// order callers should create them.
func (r *Runtime) Dirs() []string {
	return []string{
		filepath.Join(r.ShmRoot, "topics"),
		filepath.Join(r.ShmRoot, "heartbeats"),
		filepath.Join(r.ShmRoot, "params"),
		filepath.Join(r.ShmRoot, "control"),
		filepath.Join(r.ShmRoot, "network"),
	}
}
