package hcb

import (
	"fmt"
	"reflect"
)

// SyscallFunc is the shape every registered syscall target is normalized to,
// whether it came from Register or RegisterReflective.
type SyscallFunc func(args []Value) (Value, error)

// SyscallProvider is how a host struct declares its reflective syscall
// surface. Go has no runtime method annotations, so this interface stands in
// for spec.md §4.7's "methods marked with a syscall implementation
// annotation": the instance names its own annotated methods (each mapped to
// one or more syscall aliases) instead of a tag being discovered on them.
type SyscallProvider interface {
	SyscallAliases() map[string][]string
}

type syscallEntry struct {
	fn   SyscallFunc
	recv any    // receiver pointer identity, for reflective idempotency checks
	meth string // method name, for reflective idempotency checks
}

// SyscallResolver is the name -> callable registry the VM calls through for
// every Syscall opcode. It performs the Nil<->absent translation at the
// boundary so that host code can use its own native optional/pointer
// conventions without ever observing the VM's Nil tag directly.
type SyscallResolver struct {
	entries map[string]syscallEntry
}

// NewSyscallResolver returns an empty resolver.
func NewSyscallResolver() *SyscallResolver {
	return &SyscallResolver{entries: make(map[string]syscallEntry)}
}

// Register adds a directly-provided callable under name, failing
// DuplicateName if one is already registered.
func (r *SyscallResolver) Register(name string, fn SyscallFunc) error {
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.entries[name] = syscallEntry{fn: fn}
	return nil
}

// RegisterReflective inspects instance's SyscallAliases() and, for every
// named method present in instance's exported method set, registers a bound
// thunk under each listed alias.
//
// Static methods (per spec.md §4.7: "registered without an instance") are
// represented as methods that never dereference receiver state; pass a
// typed nil pointer (e.g. (*Host)(nil)) to register only those. reflect can
// bind and later invoke such a method value so long as its body never
// touches *h — if it does, that is a caller bug in the host, not this
// resolver's concern.
//
// Because reflect.Type.Method only enumerates exported methods, unexported
// methods are never visible here at all, which is exactly the "annotated
// private methods are not registered" rule with no extra bookkeeping.
//
// Registering the same instance a second time is idempotent: a duplicate
// (name, receiver, method) triple is silently skipped rather than failing
// DuplicateName.
func (r *SyscallResolver) RegisterReflective(instance SyscallProvider) error {
	typ := reflect.TypeOf(instance)
	val := reflect.ValueOf(instance)
	if typ == nil {
		return fmt.Errorf("%w: nil instance has no method set", ErrInvalidData)
	}

	for methodName, aliases := range instance.SyscallAliases() {
		method, ok := typ.MethodByName(methodName)
		if !ok {
			// Named in SyscallAliases but not an exported method (e.g. a
			// typo, or a deliberately private implementation detail) --
			// nothing to register under any of its aliases.
			continue
		}
		bound := val.MethodByName(methodName)
		fn := reflectiveThunk(bound)

		receiverKey := receiverIdentity(val, typ)
		for _, alias := range aliases {
			if existing, exists := r.entries[alias]; exists {
				if existing.recv == receiverKey && existing.meth == methodName {
					continue // idempotent re-registration
				}
				return fmt.Errorf("%w: %s", ErrDuplicateName, alias)
			}
			r.entries[alias] = syscallEntry{fn: fn, recv: receiverKey, meth: methodName}
		}
		_ = method
	}
	return nil
}

// receiverIdentity returns a comparable key identifying the receiver
// (pointer value for pointer receivers, the zero value's type for value
// receivers) used to detect idempotent re-registration.
func receiverIdentity(val reflect.Value, typ reflect.Type) any {
	if typ.Kind() == reflect.Ptr {
		return val.Pointer()
	}
	return typ
}

// reflectiveThunk adapts a bound reflect.Value method (expected signature
// func([]Value) (Value, error)) into a SyscallFunc. Both a hand-written
// dynamic-dispatch path (this one) and a code-generated trampoline are
// permitted by spec.md §9 as long as they're observationally equivalent;
// this repository uses the reflective path uniformly for simplicity.
func reflectiveThunk(bound reflect.Value) SyscallFunc {
	return func(args []Value) (Value, error) {
		in := []reflect.Value{reflect.ValueOf(args)}
		out := bound.Call(in)
		result, _ := out[0].Interface().(Value)
		if errVal := out[1].Interface(); errVal != nil {
			return Nil, errVal.(error)
		}
		return result, nil
	}
}

// Invoke locates the named syscall, translates Nil arguments to Absent()
// and back, calls the target, and returns its result.
func (r *SyscallResolver) Invoke(name string, args []Value) (Value, error) {
	entry, ok := r.entries[name]
	if !ok {
		return Nil, fmt.Errorf("%w: %s", ErrNotImplemented, name)
	}

	normalized := make([]Value, len(args))
	copy(normalized, args)
	for i, a := range normalized {
		if a.IsNil() {
			normalized[i] = Absent()
		}
	}

	result, err := entry.fn(normalized)

	// Step 4 of spec.md §4.7: translate any absent elements left in the
	// caller-visible args slice back to Nil. Our args are always discarded
	// after a Syscall opcode pops them, so this has no observable effect in
	// this VM, but it keeps Invoke correct for callers that do retain args.
	for i, a := range normalized {
		if IsAbsent(a) {
			normalized[i] = Nil
		}
	}
	copy(args, normalized)

	if err != nil {
		return Nil, err
	}
	if IsAbsent(result) {
		return Nil, nil
	}
	return result, nil
}
