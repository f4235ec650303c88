// Package engine translates SMBus transactions into calls of the SBUS
// firmware control methods and decodes their results.
package engine

import (
	"log/slog"

	"acpisbus/errcode"
	"acpisbus/services/sbus/internal/firmware"
	"acpisbus/types"
	"acpisbus/x/mathx"
)

// Firmware method names.
const (
	MethodReceiveByte    = "SRXB"
	MethodSendByte       = "SSXB"
	MethodReadByteData   = "SRDB"
	MethodWriteByteData  = "SWRB"
	MethodReadWordData   = "SRDW"
	MethodWriteWordData  = "SWRW"
	MethodReadBlockData  = "SBLR"
	MethodWriteBlockData = "SBLW"
)

// Functionality is the fixed capability set of the engine.
const Functionality = types.FuncSMBusByte | types.FuncSMBusByteData |
	types.FuncSMBusWordData | types.FuncSMBusBlockData

// ---- Selection table ----

type opKey struct {
	size types.Size
	rw   types.ReadWrite
}

// payloadFunc builds argument 2 from the request payload.
type payloadFunc func(op string, d *types.Data) (firmware.Object, error)

type op struct {
	method  string
	argc    int
	payload payloadFunc // nil when the row carries no payload
}

var ops = map[opKey]op{
	{types.SizeByte, types.Read}:       {method: MethodReceiveByte, argc: 1},
	{types.SizeByte, types.Write}:      {method: MethodSendByte, argc: 2},
	{types.SizeByteData, types.Read}:   {method: MethodReadByteData, argc: 2},
	{types.SizeByteData, types.Write}:  {method: MethodWriteByteData, argc: 3, payload: bytePayload},
	{types.SizeWordData, types.Read}:   {method: MethodReadWordData, argc: 2},
	{types.SizeWordData, types.Write}:  {method: MethodWriteWordData, argc: 3, payload: wordPayload},
	{types.SizeBlockData, types.Read}:  {method: MethodReadBlockData, argc: 2},
	{types.SizeBlockData, types.Write}: {method: MethodWriteBlockData, argc: 3, payload: blockPayload},
}

func bytePayload(_ string, d *types.Data) (firmware.Object, error) {
	return firmware.Integer(uint64(d.Byte)), nil
}

func wordPayload(_ string, d *types.Data) (firmware.Object, error) {
	return firmware.Integer(uint64(d.Word)), nil
}

func blockPayload(op string, d *types.Data) (firmware.Object, error) {
	n := int(d.Block[0])
	if n > types.BlockMax {
		return firmware.Object{}, errcode.Errf(errcode.InvalidParams, op, "block length exceeds 32")
	}
	return firmware.Buffer(d.Block[1 : 1+n]), nil
}

// AddressByte packs a 7-bit address and the R/W bit into the SMBus address byte.
func AddressByte(addr uint16, rw types.ReadWrite) uint8 {
	return uint8((addr&0x7F)<<1) | uint8(rw&0x01)
}

// ---- Requests ----

// Request is one SMBus transaction.
type Request struct {
	Addr    uint16
	RW      types.ReadWrite
	Size    types.Size
	Command uint8
	Data    *types.Data
}

// Call is the firmware invocation derived from a Request.
type Call struct {
	Method string
	Args   []firmware.Object
	Object bool // result is a buffer-shaped object
}

// Plan selects the method and builds the argument list for req without
// invoking anything.
func Plan(req Request) (Call, error) {
	o, ok := ops[opKey{req.Size, req.RW}]
	if !ok {
		return Call{}, errcode.Errf(errcode.Unsupported, "xfer", "unsupported size "+req.Size.String())
	}
	args := make([]firmware.Object, o.argc)
	args[0] = firmware.Integer(uint64(AddressByte(req.Addr, req.RW)))
	if o.argc > 1 {
		args[1] = firmware.Integer(uint64(req.Command))
	}
	if o.payload != nil {
		if req.Data == nil {
			return Call{}, errcode.Errf(errcode.InvalidParams, o.method, "missing payload")
		}
		p, err := o.payload(o.method, req.Data)
		if err != nil {
			return Call{}, err
		}
		args[2] = p
	}
	return Call{
		Method: o.method,
		Args:   args,
		Object: req.RW == types.Read && req.Size == types.SizeBlockData,
	}, nil
}

// ---- Engine ----

// Engine executes transactions against one firmware node.
type Engine struct {
	fw   firmware.Evaluator
	node firmware.Handle
	log  *slog.Logger
}

// New binds an engine to node. A nil logger uses slog.Default().
func New(fw firmware.Evaluator, node firmware.Handle, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{fw: fw, node: node, log: log}
}

func (e *Engine) Node() firmware.Handle { return e.node }

// Functionality reports the supported transaction shapes.
func (e *Engine) Functionality() types.Func { return Functionality }

// Execute runs req and returns how many reply bytes were stored in req.Data:
// 1 for byte reads, 2 for word reads, the block length for block reads and
// 0 for writes.
func (e *Engine) Execute(req Request) (int, error) {
	call, err := Plan(req)
	if err != nil {
		if errcode.Of(err) == errcode.Unsupported {
			e.log.Warn("unsupported size", "size", int(req.Size), "addr", req.Addr)
		}
		return 0, err
	}
	if req.RW == types.Read && req.Data == nil {
		return 0, errcode.Errf(errcode.InvalidParams, call.Method, "missing reply buffer")
	}

	if !call.Object {
		v, err := e.fw.EvaluateInteger(e.node, call.Method, call.Args)
		if err != nil {
			return 0, errcode.Wrap(errcode.IO, call.Method, err)
		}
		return decodeInteger(call.Method, req, v)
	}

	obj, err := e.fw.EvaluateObject(e.node, call.Method, call.Args)
	if err != nil {
		return 0, errcode.Wrap(errcode.IO, call.Method, err)
	}
	return decodeBlock(call.Method, req.Data, obj)
}

// Xfer is the transfer entry point in the shape the bus framework calls it.
func (e *Engine) Xfer(addr uint16, rw types.ReadWrite, command uint8, size types.Size, data *types.Data) error {
	_, err := e.Execute(Request{Addr: addr, RW: rw, Size: size, Command: command, Data: data})
	return err
}

func decodeInteger(method string, req Request, v uint64) (int, error) {
	if req.RW == types.Write {
		if v == 0 {
			return 0, errcode.Errf(errcode.IO, method, "firmware rejected write")
		}
		return 0, nil
	}
	switch req.Size {
	case types.SizeByte, types.SizeByteData:
		if !mathx.Fits[uint8](v) {
			return 0, errcode.Errf(errcode.IO, method, "result exceeds 8 bits")
		}
		req.Data.Byte = uint8(v)
		return 1, nil
	case types.SizeWordData:
		if !mathx.Fits[uint16](v) {
			return 0, errcode.Errf(errcode.IO, method, "result exceeds 16 bits")
		}
		req.Data.Word = uint16(v)
		return 2, nil
	}
	// Rejected by Plan.
	return 0, nil
}

func decodeBlock(method string, d *types.Data, obj firmware.Object) (int, error) {
	if obj.Type != firmware.TypeBuffer {
		return 0, errcode.Errf(errcode.IO, method, "result is "+obj.Type.String()+", not buffer")
	}
	n := obj.Len()
	if !mathx.Between(n, 1, types.BlockMax) {
		return 0, errcode.Errf(errcode.Proto, method, "block length out of range")
	}
	// No count prefix: the bytes land at Block[0].
	return copy(d.Block[:], obj.Buffer), nil
}
