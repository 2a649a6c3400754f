// Command horusctl is the operator-facing control-plane client: it
// sends one-shot control commands to running nodes and reads/writes
// parameter-store entries.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/horus-rt/horus/control"
	"github.com/horus-rt/horus/param"
	"github.com/horus-rt/horus/runtime"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var shmRoot string

	root := &cobra.Command{
		Use:   "horusctl",
		Short: "Operator CLI for a running horus runtime",
	}
	root.PersistentFlags().StringVar(&shmRoot, "shm-root", "", "shared-memory root (default: "+runtime.DefaultShmRoot+")")

	rt := func() *runtime.Runtime { return runtime.New(shmRoot) }

	root.AddCommand(newStopCmd(rt))
	root.AddCommand(newPauseCmd(rt))
	root.AddCommand(newResumeCmd(rt))
	root.AddCommand(newRestartCmd(rt))
	root.AddCommand(newParamCmd(rt))
	return root
}

func sendCmd(rt func() *runtime.Runtime, nodeName string, cmd control.Command) error {
	if err := control.Send(rt(), nodeName, cmd); err != nil {
		return fmt.Errorf("send %s to %s: %w", cmd, nodeName, err)
	}
	fmt.Printf("sent %s to %s\n", cmd, nodeName)
	return nil
}

func newStopCmd(rt func() *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <node>",
		Short: "Request a node stop at the next cycle boundary",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return sendCmd(rt, args[0], control.CmdStop) },
	}
}

func newPauseCmd(rt func() *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <node>",
		Short: "Request a node pause at the next cycle boundary",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return sendCmd(rt, args[0], control.CmdPause) },
	}
}

func newResumeCmd(rt func() *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <node>",
		Short: "Resume a paused node",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return sendCmd(rt, args[0], control.CmdResume) },
	}
}

func newRestartCmd(rt func() *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <node>",
		Short: "Re-run a node's Init without a full process restart",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return sendCmd(rt, args[0], control.CmdRestart) },
	}
}

func newParamCmd(rt func() *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Read or write parameter-store entries",
	}
	cmd.AddCommand(newParamGetCmd(rt))
	cmd.AddCommand(newParamSetCmd(rt))
	return cmd
}

func newParamGetCmd(rt func() *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a parameter's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := param.NewStore(rt()).Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s = %v (%s)\n", args[0], p.Value, p.Type)
			return nil
		},
	}
}

func newParamSetCmd(rt func() *runtime.Runtime) *cobra.Command {
	var typeFlag string
	c := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a parameter's value, creating it if absent",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			store := param.NewStore(rt())

			existing, err := store.Get(key)
			pType := param.Type(typeFlag)
			if err != nil && pType == "" {
				return fmt.Errorf("parameter %q does not exist yet; pass --type to create it", key)
			}
			if pType == "" {
				pType = existing.Type
			}
			if existing != nil && existing.ReadOnly {
				return fmt.Errorf("parameter %q is read-only", key)
			}

			value, err := coerce(raw, pType)
			if err != nil {
				return err
			}
			p := param.Parameter{Value: value, Type: pType}
			if existing != nil {
				p.Description, p.Unit, p.Range = existing.Description, existing.Unit, existing.Range
			}
			if err := store.Set(key, p); err != nil {
				return err
			}
			fmt.Printf("%s = %v (%s)\n", key, value, pType)
			return nil
		},
	}
	c.Flags().StringVar(&typeFlag, "type", "", "parameter type when creating a new key (bool|int|float|string)")
	return c
}

func coerce(raw string, t param.Type) (any, error) {
	switch t {
	case param.TypeBool:
		return strconv.ParseBool(raw)
	case param.TypeInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		return int(v), err
	case param.TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case param.TypeString, "":
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported --type %q for command-line assignment", t)
	}
}
