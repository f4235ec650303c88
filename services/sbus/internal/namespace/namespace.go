// Package namespace is the traversal contract of the platform device
// namespace, plus an in-memory Tree implementing it.
package namespace

import (
	"acpisbus/services/sbus/internal/firmware"
)

// Kind is a namespace object type (ACPI numbering).
type Kind uint8

const (
	KindAny    Kind = 0
	KindDevice Kind = 6
	KindMethod Kind = 8
	KindScope  Kind = 16 // not an ACPI object type; plain scope nodes
)

// Status is what a visitor returns and what a walk ends with.
type Status uint8

const (
	OK Status = iota
	AlreadyExists
	NotFound
	Error
)

func (s Status) String() string {
	switch s {
	case OK:
		return "AE_OK"
	case AlreadyExists:
		return "AE_ALREADY_EXISTS"
	case NotFound:
		return "AE_NOT_FOUND"
	default:
		return "AE_ERROR"
	}
}

// MaxDepth walks the whole tree.
const MaxDepth = int(^uint32(0) >> 1)

// Visitor is called once per matching node. Any status other than OK stops
// the walk and becomes its result.
type Visitor func(node firmware.Handle, depth int) Status

// Device is the higher-level device object that owns a namespace node.
type Device interface {
	Path() string
}

// Walker is the traversal service.
type Walker interface {
	// Root is the handle of the namespace root.
	Root() firmware.Handle
	// Walk visits, depth first, every node of the given kind below root.
	Walk(kind Kind, root firmware.Handle, maxDepth int, visit Visitor) Status
	// Name returns the single (at most 4 character) segment name of node.
	Name(node firmware.Handle) (string, error)
	// Device resolves the device object bound to node.
	Device(node firmware.Handle) (Device, error)
}
