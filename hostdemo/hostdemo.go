// Package hostdemo provides a minimal syscall host that stands in for the
// real visual-novel engine so an .hcb script is exercisable end to end
// without one. It is registered reflectively, exercising
// hcb.SyscallResolver.RegisterReflective against a concrete, non-trivial
// method set.
package hostdemo

import (
	"fmt"

	"hcbvm/hcb"
	"hcbvm/internal/consolelog"
)

// Host implements hcb.SyscallProvider with a small console-facing surface: a
// line-print syscall, a trace log, and a host-side key/value store the script
// can poke at through syscalls to exercise the syscall boundary. The store is
// separate from the VM's own tables.
type Host struct {
	log    *consolelog.Logger
	lines  []string
	values map[int32]int32
}

// New builds a Host that writes through log.
func New(log *consolelog.Logger) *Host {
	return &Host{log: log, values: make(map[int32]int32)}
}

// Lines returns every string printed via Print, for tests that need to
// assert on host-visible side effects without scraping stdout.
func (h *Host) Lines() []string { return h.lines }

// SyscallAliases declares the reflective syscall surface. A single exported
// method may be reachable under more than one name, mirroring a script
// compiled against an older syscall name that was later renamed.
func (h *Host) SyscallAliases() map[string][]string {
	return map[string][]string{
		"Print":      {"print", "puts"},
		"Log":        {"log"},
		"StoreValue": {"store_value"},
		"LoadValue":  {"load_value"},
		"Noop":       {"noop"},
		"private":    {"should_never_register"},
	}
}

// Print is the script-facing "print a line" syscall. args[0] is the string
// to print; a missing (absent) argument prints nothing and returns absent.
func (h *Host) Print(args []hcb.Value) (hcb.Value, error) {
	if len(args) != 1 {
		return hcb.Nil, fmt.Errorf("print: expected 1 arg, got %d", len(args))
	}
	if hcb.IsAbsent(args[0]) {
		return hcb.Absent(), nil
	}
	line := args[0].String()
	h.lines = append(h.lines, line)
	fmt.Println(line)
	return hcb.Absent(), nil
}

// Log forwards a message to the host's logger at info level.
func (h *Host) Log(args []hcb.Value) (hcb.Value, error) {
	if len(args) != 1 {
		return hcb.Nil, fmt.Errorf("log: expected 1 arg, got %d", len(args))
	}
	h.log.Infof("script: %s", args[0].String())
	return hcb.Absent(), nil
}

// StoreValue(key, value) records value under key in the host's own table,
// independent of any VM-side global/local table.
func (h *Host) StoreValue(args []hcb.Value) (hcb.Value, error) {
	if len(args) != 2 {
		return hcb.Nil, fmt.Errorf("store_value: expected 2 args, got %d", len(args))
	}
	if args[0].Tag() != hcb.TagInt {
		return hcb.Nil, fmt.Errorf("store_value: key must be int, got %s", args[0].Tag())
	}
	if args[1].Tag() != hcb.TagInt {
		return hcb.Nil, fmt.Errorf("store_value: value must be int, got %s", args[1].Tag())
	}
	h.values[args[0].Int()] = args[1].Int()
	return hcb.Absent(), nil
}

// LoadValue(key) returns the value last stored under key, or Nil if absent.
func (h *Host) LoadValue(args []hcb.Value) (hcb.Value, error) {
	if len(args) != 1 {
		return hcb.Nil, fmt.Errorf("load_value: expected 1 arg, got %d", len(args))
	}
	if args[0].Tag() != hcb.TagInt {
		return hcb.Nil, fmt.Errorf("load_value: key must be int, got %s", args[0].Tag())
	}
	v, ok := h.values[args[0].Int()]
	if !ok {
		return hcb.Absent(), nil
	}
	return hcb.IntValue(v), nil
}

// Noop takes no arguments and returns nothing; it exists to exercise the
// zero-arity syscall path.
func (h *Host) Noop(args []hcb.Value) (hcb.Value, error) {
	if len(args) != 0 {
		return hcb.Nil, fmt.Errorf("noop: expected 0 args, got %d", len(args))
	}
	return hcb.Absent(), nil
}

// private is never registered: reflect.Type.Method only enumerates exported
// methods, so listing it in SyscallAliases has no effect. It exists to prove
// that property.
func (h *Host) private(args []hcb.Value) (hcb.Value, error) {
	return hcb.Absent(), nil
}
