// Package heartbeat implements the file-based liveness record each
// scheduler writes for its nodes.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/runtime"
)

// DefaultInterval is the default heartbeat cadence: 1 Hz.
const DefaultInterval = time.Second

// Record is the heartbeat file's field set. It is serialized as YAML.
type Record struct {
	State             string  `yaml:"state"`
	TotalTicks        uint64  `yaml:"total_ticks"`
	AvgTickDurationMs float64 `yaml:"avg_tick_duration_ms"`
	LastUpdatedNs     int64   `yaml:"last_updated_ns"`
}

// Writer owns the single-writer heartbeat file for one node and rate-
// limits how often it actually touches disk, keeping writes off the
// scheduler's hot path.
type Writer struct {
	rt       *runtime.Runtime
	nodeName string
	limiter  *rate.Limiter
	last     time.Time
}

// NewWriter constructs a Writer that will not write more often than
// once per interval via MaybeWrite (Write always writes immediately).
func NewWriter(rt *runtime.Runtime, nodeName string, interval time.Duration) *Writer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Writer{rt: rt, nodeName: nodeName, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Write atomically replaces the heartbeat file (write-to-temp, rename).
func (w *Writer) Write(rec Record) error {
	path := w.rt.HeartbeatPath(w.nodeName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return herrors.New(herrors.SharedMemory, "write_heartbeat", w.nodeName, err)
	}
	b, err := yaml.Marshal(rec)
	if err != nil {
		return herrors.New(herrors.Communication, "write_heartbeat", w.nodeName, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return herrors.New(herrors.SharedMemory, "write_heartbeat", w.nodeName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return herrors.New(herrors.SharedMemory, "write_heartbeat", w.nodeName, err)
	}
	w.last = time.Now()
	return nil
}

// MaybeWrite writes rec only if at least the configured interval has
// elapsed since the last write, returning whether it actually wrote.
func (w *Writer) MaybeWrite(rec Record) (bool, error) {
	if !w.limiter.Allow() {
		return false, nil
	}
	return true, w.Write(rec)
}

// Since returns how long it has been since the last successful write.
func (w *Writer) Since() time.Duration {
	if w.last.IsZero() {
		return 0
	}
	return time.Since(w.last)
}

// Read parses the heartbeat file for nodeName.
func Read(rt *runtime.Runtime, nodeName string) (*Record, error) {
	path := rt.HeartbeatPath(nodeName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, herrors.New(herrors.NotFound, "read_heartbeat", nodeName, err)
		}
		return nil, herrors.New(herrors.SharedMemory, "read_heartbeat", nodeName, err)
	}
	var rec Record
	if err := yaml.Unmarshal(b, &rec); err != nil {
		return nil, herrors.New(herrors.Communication, "read_heartbeat", nodeName, err)
	}
	return &rec, nil
}

// IsStale reports whether rec is older than maxAge. A missing or stale
// heartbeat file means its node is considered dead.
func (r *Record) IsStale(maxAge time.Duration) bool {
	age := time.Since(time.Unix(0, r.LastUpdatedNs))
	return age > maxAge
}

// StateString renders a node.State the way the heartbeat record stores
// it.
func StateString(s node.State) string {
	return fmt.Sprint(s)
}
