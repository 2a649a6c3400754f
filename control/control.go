// Package control implements the one-shot external command channel
// between an operator tool and a running node.
package control

import (
	"os"
	"path/filepath"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
)

// Command is a one-shot instruction to a running node.
type Command string

const (
	CmdStop    Command = "stop"
	CmdRestart Command = "restart"
	CmdPause   Command = "pause"
	CmdResume  Command = "resume"
)

func (c Command) valid() bool {
	switch c {
	case CmdStop, CmdRestart, CmdPause, CmdResume:
		return true
	default:
		return false
	}
}

// Send writes a one-shot command for nodeName. Intended to be called
// by an external operator tool (see cmd/horusctl).
func Send(rt *runtime.Runtime, nodeName string, cmd Command) error {
	if !cmd.valid() {
		return herrors.New(herrors.InvalidInput, "send", nodeName, errInvalidCommand(cmd))
	}
	path := rt.ControlPath(nodeName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return herrors.New(herrors.SharedMemory, "send", nodeName, err)
	}
	return os.WriteFile(path, []byte(cmd), 0o644)
}

type errInvalidCommand Command

func (e errInvalidCommand) Error() string { return "invalid control command: " + string(e) }

// Poller is invoked by the scheduler between ticks to check for and
// consume a pending command: it reads the node's control-command file
// without blocking and hands the command back. Applying it is left to
// the caller (the scheduler does so between ticks, never mid-tick).
type Poller struct {
	rt       *runtime.Runtime
	nodeName string
}

// NewPoller constructs a Poller for nodeName.
func NewPoller(rt *runtime.Runtime, nodeName string) *Poller {
	return &Poller{rt: rt, nodeName: nodeName}
}

// Poll checks for a pending command, non-blocking. If present, it
// deletes the file (consuming it) and returns the command.
func (p *Poller) Poll() (Command, bool, error) {
	path := p.rt.ControlPath(p.nodeName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, herrors.New(herrors.SharedMemory, "poll", p.nodeName, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", false, herrors.New(herrors.SharedMemory, "poll", p.nodeName, err)
	}
	cmd := Command(b)
	if !cmd.valid() {
		return "", false, herrors.New(herrors.InvalidInput, "poll", p.nodeName, errInvalidCommand(cmd))
	}
	return cmd, true, nil
}
