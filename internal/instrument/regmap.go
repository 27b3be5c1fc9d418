package instrument

import (
	"fmt"

	"github.com/lynxgpu/lynx/ptx"
)

// RegisterScope decides how long a symbolic register binding lives.
type RegisterScope byte

const (
	// RegisterScopePass shares one binding per symbolic name across every kernel run by the
	// same Pass. Symbolic names must then be globally unique or intentionally shared.
	RegisterScopePass RegisterScope = iota
	// RegisterScopeKernel binds symbolic names per kernel.
	RegisterScopeKernel
)

// String implements fmt.Stringer.
func (s RegisterScope) String() string {
	switch s {
	case RegisterScopePass:
		return "pass"
	case RegisterScopeKernel:
		return "kernel"
	}
	panic(fmt.Sprintf("unknown register scope %d", s))
}

// ParseRegisterScope is the inverse of RegisterScope.String.
func ParseRegisterScope(s string) (RegisterScope, error) {
	switch s {
	case "pass", "":
		return RegisterScopePass, nil
	case "kernel":
		return RegisterScopeKernel, nil
	}
	return 0, fmt.Errorf("invalid register scope %q: must be pass or kernel", s)
}

type registerKey struct {
	kernel, name string
}

// RegisterMap binds symbolic register names to registers allocated from a kernel.
type RegisterMap struct {
	scope    RegisterScope
	bindings map[registerKey]ptx.RegisterID
	// kernel is the name of the kernel being instrumented.
	kernel string
}

// NewRegisterMap returns an empty RegisterMap of the given scope.
func NewRegisterMap(scope RegisterScope) *RegisterMap {
	return &RegisterMap{scope: scope, bindings: make(map[registerKey]ptx.RegisterID)}
}

// enterKernel makes subsequent lookups resolve within the named kernel.
func (m *RegisterMap) enterKernel(name string) {
	m.kernel = name
}

func (m *RegisterMap) key(name string) registerKey {
	if m.scope == RegisterScopeKernel {
		return registerKey{kernel: m.kernel, name: name}
	}
	return registerKey{name: name}
}

// Bind binds name to reg, replacing any previous binding.
func (m *RegisterMap) Bind(name string, reg ptx.RegisterID) {
	m.bindings[m.key(name)] = reg
}

// Lookup returns the register bound to name.
func (m *RegisterMap) Lookup(name string) (ptx.RegisterID, bool) {
	reg, ok := m.bindings[m.key(name)]
	return reg, ok
}

// Len returns the number of bindings.
func (m *RegisterMap) Len() int {
	return len(m.bindings)
}
