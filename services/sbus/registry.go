package sbus

import (
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// PeriphRegistry registers adapters with the process-wide periph.io I²C
// registry, where i2creg.Open and i2creg.All can find them.
type PeriphRegistry struct{}

func (PeriphRegistry) Register(a *Adapter) error {
	return i2creg.Register(a.Name(), a.Aliases(), a.Number(), func() (i2c.BusCloser, error) {
		return a.Bus(), nil
	})
}

func (PeriphRegistry) Unregister(a *Adapter) error {
	return i2creg.Unregister(a.Name())
}

var _ Registry = PeriphRegistry{}
