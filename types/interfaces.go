package types

import (
	"fmt"
	"strings"
)

// InterfaceKind tags the behaviour of a coupled interface. Coarse interface
// fields are constructed by looking up the fine field's kind.
type InterfaceKind uint8

const (
	IK_None InterfaceKind = iota
	IK_Processor
	IK_Cyclic
	IK_ProcessorCyclic
)

var InterfaceNameMap = map[string]InterfaceKind{
	"processor":       IK_Processor,
	"proc":            IK_Processor,
	"cyclic":          IK_Cyclic,
	"processorcyclic": IK_ProcessorCyclic,
}

func NewInterfaceKind(label string) (kind InterfaceKind, err error) {
	var ok bool
	if kind, ok = InterfaceNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown interface type %q", label)
	}
	return
}

func (ik InterfaceKind) String() string {
	switch ik {
	case IK_None:
		return "none"
	case IK_Processor:
		return "processor"
	case IK_Cyclic:
		return "cyclic"
	case IK_ProcessorCyclic:
		return "processorCyclic"
	}
	return fmt.Sprintf("InterfaceKind(%d)", int(ik))
}
