// Package param implements the cross-process typed key/value plane
// over shared-memory files.
package param

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// Type identifies a Parameter's value type.
type Type string

const (
	TypeBool   Type = "bool"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeString Type = "string"
	TypeArray  Type = "array"
	TypeObject Type = "object"
)

// Range optionally bounds a numeric parameter.
type Range struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// Parameter is the document stored at <shm_root>/params/<key>.
type Parameter struct {
	Value       any    `yaml:"value"`
	Type        Type   `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Unit        string `yaml:"unit,omitempty"`
	ReadOnly    bool   `yaml:"read_only,omitempty"`
	Range       *Range `yaml:"range,omitempty"`
}

// Store reads and writes Parameters under a Runtime's params directory.
type Store struct {
	rt *runtime.Runtime
}

// NewStore constructs a Store rooted at rt.
func NewStore(rt *runtime.Runtime) *Store {
	return &Store{rt: rt}
}

// Get parses the parameter file for key.
func (s *Store) Get(key string) (*Parameter, error) {
	path := s.rt.ParamPath(key)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, herrors.New(herrors.NotFound, "get", key, err)
		}
		return nil, herrors.New(herrors.SharedMemory, "get", key, err)
	}
	var p Parameter
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, herrors.New(herrors.Communication, "get", key, err)
	}
	// YAML writes an integral float such as 2.0 as "2", which decodes
	// back as an int; restore the declared float type.
	if v, ok := p.Value.(int); ok && p.Type == TypeFloat {
		p.Value = float64(v)
	}
	return &p, nil
}

// Set atomically replaces the parameter file for key (write-to-temp,
// rename).
func (s *Store) Set(key string, p Parameter) error {
	path := s.rt.ParamPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return herrors.New(herrors.SharedMemory, "set", key, err)
	}
	b, err := yaml.Marshal(p)
	if err != nil {
		return herrors.New(herrors.Communication, "set", key, err)
	}
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return herrors.New(herrors.SharedMemory, "set", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return herrors.New(herrors.SharedMemory, "set", key, err)
	}
	return nil
}

// GetFloat reads key and requires it to be numeric, failing with a
// typed error rather than silently coercing.
func (s *Store) GetFloat(key string) (float64, error) {
	p, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	switch p.Type {
	case TypeFloat, TypeInt:
		switch v := p.Value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	}
	return 0, herrors.New(herrors.InvalidInput, "get_float", key,
		fmt.Errorf("parameter has type %s, expected float or int", p.Type))
}

// GetString reads key and requires it to be a string.
func (s *Store) GetString(key string) (string, error) {
	p, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if p.Type != TypeString {
		return "", herrors.New(herrors.InvalidInput, "get_string", key,
			fmt.Errorf("parameter has type %s, expected string", p.Type))
	}
	v, _ := p.Value.(string)
	return v, nil
}

// GetBool reads key and requires it to be a bool.
func (s *Store) GetBool(key string) (bool, error) {
	p, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if p.Type != TypeBool {
		return false, herrors.New(herrors.InvalidInput, "get_bool", key,
			fmt.Errorf("parameter has type %s, expected bool", p.Type))
	}
	v, _ := p.Value.(bool)
	return v, nil
}

// Watcher polls a parameter's file mtime and emits change events.
type Watcher struct {
	store    *Store
	key      string
	interval time.Duration
}

// DefaultWatchInterval is the Watcher's default poll period.
const DefaultWatchInterval = 100 * time.Millisecond

// Watch constructs a Watcher for key, polling at interval (0 uses
// DefaultWatchInterval).
func (s *Store) Watch(key string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{store: s, key: key, interval: interval}
}

// Run polls until ctx is canceled, sending a fresh Parameter on ch
// whenever the file's mtime changes. It tolerates the momentary
// absence of the file during an atomic rename.
func (w *Watcher) Run(ctx context.Context, ch chan<- *Parameter) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	path := w.store.rt.ParamPath(w.key)
	var lastMod time.Time
	if fi, err := os.Stat(path); err == nil {
		lastMod = fi.ModTime() // only later changes are sent
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(path)
			if err != nil {
				continue // momentary absence during rename, or not yet created
			}
			if fi.ModTime().Equal(lastMod) {
				continue
			}
			lastMod = fi.ModTime()
			p, err := w.store.Get(w.key)
			if err != nil {
				continue
			}
			select {
			case ch <- p:
			case <-ctx.Done():
				return
			}
		}
	}
}
