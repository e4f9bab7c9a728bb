package interfaces

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/types"
)

// Factory builds the coarse level field for coarse from the field of the
// same interface on the finer level.
type Factory func(coarse *Interface, fine Field) (Field, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[types.InterfaceKind]Factory)
)

// Register installs the factory for a kind, replacing any previous one.
func Register(kind types.InterfaceKind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[kind] = factory
}

// New asks the registry for the handler matching the fine field's kind and
// builds it on the coarse topology. A kind without a factory, or a coarse
// topology of another kind, is a configuration error.
func New(coarse *Interface, fine Field) (Field, error) {
	if coarse == nil {
		return nil, errors.Errorf("no coarse interface for fine %s interface %d",
			fine.Kind(), fine.Interface().Index)
	}
	if coarse.Kind != fine.Kind() {
		return nil, errors.Errorf("coarse interface %d is %s but the fine field is %s",
			coarse.Index, coarse.Kind, fine.Kind())
	}
	registryMu.RLock()
	factory, ok := factories[fine.Kind()]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no interface field type registered for %s (interface %d)",
			fine.Kind(), coarse.Index)
	}
	return factory(coarse, fine)
}

func init() {
	Register(types.IK_Processor, func(coarse *Interface, fine Field) (Field, error) {
		return NewProcessorField(coarse, fine.DoTransform(), fine.Rank()), nil
	})
	Register(types.IK_Cyclic, func(coarse *Interface, fine Field) (Field, error) {
		return NewCyclicField(coarse, fine.DoTransform()), nil
	})
}
