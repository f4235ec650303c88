// Package sbus implements an SMBus adapter on top of the SBUS firmware node:
// it finds the node in the platform namespace, binds the transaction engine
// to it and registers the result with a bus registry.
package sbus

import (
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"

	"acpisbus/bus"
	"acpisbus/errcode"
	"acpisbus/services/sbus/internal/engine"
	"acpisbus/services/sbus/internal/firmware"
	"acpisbus/services/sbus/internal/i2cshim"
	"acpisbus/services/sbus/internal/namespace"
	"acpisbus/types"
)

const (
	// NodeName is the namespace segment implementing the SBUS methods.
	NodeName = "SBUS"
	// DefaultAdapterName is the registered name of the adapter.
	DefaultAdapterName = "ACPI SBUS i2c"
	// AdapterClass is the probing class of the adapter.
	AdapterClass = types.ClassHWMon | types.ClassSPD
)

// TopicState carries the retained types.HALState of the adapter.
var TopicState = bus.Topic{"hal", "sbus", "state"}

// Registry is the bus-enumeration service the adapter registers with.
type Registry interface {
	Register(a *Adapter) error
	Unregister(a *Adapter) error
}

// Deps are the external collaborators of the adapter.
type Deps struct {
	Namespace namespace.Walker
	Firmware  firmware.Evaluator
	Registry  Registry
	Conn      *bus.Connection // optional state announcements
	Logger    *slog.Logger    // nil => slog.Default()
}

// Adapter is the SMBus adapter backed by one SBUS node. Exactly one node can
// be bound per adapter, and it stays bound until Unload.
type Adapter struct {
	cfg  AdapterConfig
	deps Deps
	log  *slog.Logger

	parent namespace.Device
	node   firmware.Handle
	engine *engine.Engine
	bound  bool

	regErr error
}

// ---- Load / Unload ----

// Load scans the namespace for the SBUS node, binds it and registers the
// adapter. A namespace without SBUS loads successfully with the adapter left
// unbound; so does a disabled platform, without scanning at all.
//
// The returned Adapter is never nil. On a duplicate node it is still bound to
// the first one and Unload releases it; on any other error it is unbound.
func Load(cfg Config, deps Deps) (*Adapter, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &Adapter{cfg: cfg.Adapter, deps: deps, log: deps.Logger}

	if cfg.Platform.Disabled {
		a.publish(types.LevelIdle, "disabled")
		return a, nil
	}

	ns := deps.Namespace
	st := ns.Walk(namespace.KindDevice, ns.Root(), namespace.MaxDepth, a.visit)

	var err error
	switch st {
	case namespace.OK:
	case namespace.AlreadyExists:
		err = errcode.Errf(errcode.Exists, "scan", "more than one "+NodeName+" node")
	case namespace.NotFound:
		err = errcode.Errf(errcode.NoDevice, "scan", "no device object for "+NodeName)
	default:
		err = errcode.Wrap(errcode.IO, "register", a.regErr)
	}

	switch {
	case err != nil:
		a.publish(types.LevelStopped, string(errcode.Of(err)))
	case a.bound:
		a.publish(types.LevelReady, "bound")
	default:
		a.publish(types.LevelIdle, "no_sbus")
	}
	return a, err
}

// visit is the per-node step of the namespace walk.
func (a *Adapter) visit(h firmware.Handle, _ int) namespace.Status {
	ns := a.deps.Namespace
	name, err := ns.Name(h)
	if err != nil || name != NodeName {
		return namespace.OK
	}

	if a.bound {
		a.log.Warn("only one SBUS device supported", "node", h)
		return namespace.AlreadyExists
	}

	dev, err := ns.Device(h)
	if err != nil || dev == nil {
		a.log.Error("failed to get device for SBUS", "node", h, "err", err)
		return namespace.NotFound
	}

	a.parent = dev
	a.node = h
	a.engine = engine.New(a.deps.Firmware, h, a.log)

	if err := a.deps.Registry.Register(a); err != nil {
		a.log.Error("failed to add i2c adapter for SBUS device", "node", h, "err", err)
		a.regErr = err
		a.parent, a.node, a.engine = nil, 0, nil
		return namespace.Error
	}

	a.bound = true
	a.log.Info("found SBUS i2c device", "node", h, "parent", dev.Path(), "name", a.Name())
	return namespace.OK
}

// Unload unregisters a bound adapter. It is a no-op otherwise.
func (a *Adapter) Unload() {
	if !a.bound {
		return
	}
	if err := a.deps.Registry.Unregister(a); err != nil {
		a.log.Warn("unregister failed", "name", a.Name(), "err", err)
	}
	a.bound = false
	a.publish(types.LevelStopped, "unbound")
}

func (a *Adapter) publish(level, status string) {
	if a.deps.Conn == nil {
		return
	}
	st := types.HALState{Level: level, Status: status, TS: time.Now().UnixNano()}
	a.deps.Conn.Publish(a.deps.Conn.NewMessage(TopicState, st, true))
}

// ---- Descriptor ----

func (a *Adapter) Name() string             { return a.cfg.Name }
func (a *Adapter) Aliases() []string        { return append([]string(nil), a.cfg.Aliases...) }
func (a *Adapter) Number() int              { return a.cfg.Number }
func (a *Adapter) Class() types.Class       { return AdapterClass }
func (a *Adapter) Parent() namespace.Device { return a.parent }
func (a *Adapter) Node() firmware.Handle    { return a.node }
func (a *Adapter) Bound() bool              { return a.bound }

// ---- Transactions ----

// Functionality reports the supported transaction shapes, bound or not.
func (a *Adapter) Functionality() types.Func { return engine.Functionality }

// Execute runs one transaction on the bound node.
func (a *Adapter) Execute(req engine.Request) (int, error) {
	if !a.bound || a.engine == nil {
		return 0, errcode.Errf(errcode.NotBound, "xfer", "adapter is not bound")
	}
	return a.engine.Execute(req)
}

// Xfer is the framework transfer call.
func (a *Adapter) Xfer(addr uint16, rw types.ReadWrite, command uint8, size types.Size, data *types.Data) error {
	_, err := a.Execute(engine.Request{Addr: addr, RW: rw, Size: size, Command: command, Data: data})
	return err
}

// Status is Xfer reporting a signed errno (0 on success).
func (a *Adapter) Status(addr uint16, rw types.ReadWrite, command uint8, size types.Size, data *types.Data) int {
	return errcode.Errno(a.Xfer(addr, rw, command, size, data))
}

// Bus returns the adapter as a raw I²C bus (periph i2c.BusCloser, tinygo drivers.I2C).
func (a *Adapter) Bus() i2c.BusCloser { return i2cshim.New(a, a.Name()) }
