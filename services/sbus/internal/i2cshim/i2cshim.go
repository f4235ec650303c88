// Package i2cshim presents an SMBus-only adapter as a raw I²C bus so
// register-style drivers (tinygo drivers.I2C, periph i2c.Bus) can use it.
package i2cshim

import (
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"acpisbus/errcode"
	"acpisbus/services/sbus/internal/engine"
	"acpisbus/types"
)

// Executor runs one SMBus transaction (see engine.Engine.Execute).
type Executor interface {
	Execute(req engine.Request) (int, error)
}

// Bus adapts an Executor to the Tx shape.
type Bus struct {
	x    Executor
	name string
}

func New(x Executor, name string) *Bus {
	return &Bus{x: x, name: name}
}

var (
	_ drivers.I2C   = (*Bus)(nil)
	_ i2c.BusCloser = (*Bus)(nil)
)

func (b *Bus) String() string { return b.name }

// SetSpeed is not supported; the firmware owns the bus clock.
func (b *Bus) SetSpeed(physic.Frequency) error {
	return errcode.Errf(errcode.Unsupported, "set_speed", "bus clock is firmware controlled")
}

// Close releases nothing; the adapter lifecycle is owned by its loader.
func (b *Bus) Close() error { return nil }

// Tx maps a write-then-read onto the closest SMBus transaction:
//
//	w=0 r=1   receive byte        w=1 r=0   send byte
//	w=1 r=1   read byte data      w=2 r=0   write byte data
//	w=1 r=2   read word data      w=3 r=0   write word data
//	w=1 r>2   read block data     w>3 r=0   write block data
//
// Words are little-endian on the wire: r[0]/w[1] is the low byte.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return errcode.Errf(errcode.InvalidParams, "tx", "10-bit addressing not supported")
	}
	req := engine.Request{Addr: addr, Data: &types.Data{}}
	switch {
	case len(w) == 0 && len(r) == 1:
		req.RW, req.Size = types.Read, types.SizeByte
	case len(w) == 1 && len(r) == 0:
		req.RW, req.Size, req.Command = types.Write, types.SizeByte, w[0]
	case len(w) == 1 && len(r) == 1:
		req.RW, req.Size, req.Command = types.Read, types.SizeByteData, w[0]
	case len(w) == 1 && len(r) == 2:
		req.RW, req.Size, req.Command = types.Read, types.SizeWordData, w[0]
	case len(w) == 1 && len(r) > 2:
		if len(r) > types.BlockMax {
			return errcode.Errf(errcode.InvalidParams, "tx", "block read longer than 32")
		}
		req.RW, req.Size, req.Command = types.Read, types.SizeBlockData, w[0]
	case len(w) == 2 && len(r) == 0:
		req.RW, req.Size, req.Command = types.Write, types.SizeByteData, w[0]
		req.Data.Byte = w[1]
	case len(w) == 3 && len(r) == 0:
		req.RW, req.Size, req.Command = types.Write, types.SizeWordData, w[0]
		req.Data.Word = uint16(w[1]) | uint16(w[2])<<8
	case len(w) > 3 && len(r) == 0:
		if len(w)-1 > types.BlockMax {
			return errcode.Errf(errcode.InvalidParams, "tx", "block write longer than 32")
		}
		req.RW, req.Size, req.Command = types.Write, types.SizeBlockData, w[0]
		req.Data.Block[0] = byte(len(w) - 1)
		copy(req.Data.Block[1:], w[1:])
	default:
		return errcode.Errf(errcode.Unsupported, "tx", "transfer shape has no SMBus equivalent")
	}

	n, err := b.x.Execute(req)
	if err != nil {
		return err
	}
	if req.RW == types.Write {
		return nil
	}
	switch req.Size {
	case types.SizeByte, types.SizeByteData:
		r[0] = req.Data.Byte
	case types.SizeWordData:
		r[0] = byte(req.Data.Word)
		r[1] = byte(req.Data.Word >> 8)
	case types.SizeBlockData:
		if n != len(r) {
			return errcode.Errf(errcode.Proto, "tx", "block length does not match read buffer")
		}
		copy(r, req.Data.Block[:n])
	}
	return nil
}
