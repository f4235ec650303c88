// Package sim is a simulated platform namespace with an SBUS node whose
// control methods drive an in-memory set of SMBus devices.
package sim

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"acpisbus/services/sbus/internal/firmware"
	"acpisbus/services/sbus/internal/namespace"
)

// ---- Spec (YAML) ----

type Spec struct {
	Nodes   []NodeSpec   `yaml:"nodes"`
	SBus    string       `yaml:"sbus"` // path of the node serving the methods
	Devices []DeviceSpec `yaml:"devices"`
}

type NodeSpec struct {
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind"` // device (default), method, scope
	Detached bool   `yaml:"detached"`
}

type DeviceSpec struct {
	Address   uint8            `yaml:"address"`
	Registers map[uint8]uint8  `yaml:"registers"`
	Words     map[uint8]uint16 `yaml:"words"`
	Blocks    map[uint8][]byte `yaml:"blocks"`
}

// DefaultSpec is a board with one SBUS controller, a TMP102 at 0x48 and a
// smart battery at 0x0B.
func DefaultSpec() Spec {
	return Spec{
		Nodes: []NodeSpec{
			{Path: `\_SB.PCI0`},
			{Path: `\_SB.PCI0.SBUS`},
			{Path: `\_SB.PCI0.LPCB`},
		},
		SBus: `\_SB.PCI0.SBUS`,
		Devices: []DeviceSpec{
			// 25.0 C and the power-on configuration, both MSB first on the wire.
			{Address: 0x48, Words: map[uint8]uint16{0x00: 0x0019, 0x01: 0xA060}},
			{Address: 0x0B, Words: map[uint8]uint16{0x09: 12450, 0x0D: 87}, Blocks: map[uint8][]byte{0x20: []byte("SIMBATT")}},
		},
	}
}

// LoadSpec reads a YAML spec from path.
func LoadSpec(path string) (Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	var s Spec
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Spec{}, fmt.Errorf("sim: parse %s: %w", path, err)
	}
	return s, nil
}

func parseKind(s string) (namespace.Kind, error) {
	switch strings.ToLower(s) {
	case "", "device":
		return namespace.KindDevice, nil
	case "method":
		return namespace.KindMethod, nil
	case "scope":
		return namespace.KindScope, nil
	}
	return 0, fmt.Errorf("sim: unknown node kind %q", s)
}

// Build creates the namespace tree and the firmware serving spec.SBus.
// An empty SBus path yields firmware with no node.
func Build(spec Spec) (*namespace.Tree, *Firmware, error) {
	tree := namespace.NewTree()
	for _, n := range spec.Nodes {
		k, err := parseKind(n.Kind)
		if err != nil {
			return nil, nil, err
		}
		h, err := tree.Add(n.Path, k)
		if err != nil {
			return nil, nil, fmt.Errorf("sim: node %s: %w", n.Path, err)
		}
		if n.Detached {
			_ = tree.Detach(h)
		}
	}
	fw := NewFirmware(0)
	if spec.SBus != "" {
		h, err := tree.Lookup(spec.SBus)
		if err != nil {
			return nil, nil, fmt.Errorf("sim: sbus %s: %w", spec.SBus, err)
		}
		fw.node = h
	}
	for _, d := range spec.Devices {
		fw.AddDevice(d)
	}
	return tree, fw, nil
}

// ---- Firmware ----

type device struct {
	regs   [256]byte
	words  map[uint8]uint16 // word registers shadowing regs
	blocks map[uint8][]byte
	ptr    uint8
}

func (d *device) word(cmd uint8) uint16 {
	if w, ok := d.words[cmd]; ok {
		return w
	}
	return uint16(d.regs[cmd]) | uint16(d.regs[cmd+1])<<8
}

// Firmware evaluates the eight SBUS methods. Evaluations are serialised.
type Firmware struct {
	mu      sync.Mutex
	node    firmware.Handle
	devices map[uint8]*device
	faults  map[string]error
}

func NewFirmware(node firmware.Handle) *Firmware {
	return &Firmware{node: node, devices: map[uint8]*device{}, faults: map[string]error{}}
}

func (f *Firmware) Node() firmware.Handle { return f.node }

// AddDevice places (or replaces) a device at spec.Address.
func (f *Firmware) AddDevice(spec DeviceSpec) {
	d := &device{words: map[uint8]uint16{}, blocks: map[uint8][]byte{}}
	for r, v := range spec.Registers {
		d.regs[r] = v
	}
	for r, w := range spec.Words {
		d.words[r] = w
	}
	for r, b := range spec.Blocks {
		d.blocks[r] = append([]byte(nil), b...)
	}
	f.mu.Lock()
	f.devices[spec.Address&0x7F] = d
	f.mu.Unlock()
}

// SetFault makes method fail with err; nil clears it.
func (f *Firmware) SetFault(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.faults, method)
		return
	}
	f.faults[method] = err
}

// Register returns register reg of the device at addr.
func (f *Firmware) Register(addr, reg uint8) (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[addr]
	if !ok {
		return 0, false
	}
	return d.regs[reg], true
}

// Word returns word register reg of the device at addr.
func (f *Firmware) Word(addr, reg uint8) (uint16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[addr]
	if !ok {
		return 0, false
	}
	return d.word(reg), true
}

// Block returns block register reg of the device at addr.
func (f *Firmware) Block(addr, reg uint8) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[addr]
	if !ok {
		return nil, false
	}
	b, ok := d.blocks[reg]
	return append([]byte(nil), b...), ok
}

var errNoDevice = errors.New("AE_AML_OPERAND_VALUE: no device acknowledged")

func (f *Firmware) EvaluateInteger(node firmware.Handle, method string, args []firmware.Object) (uint64, error) {
	obj, err := f.evaluate(node, method, args)
	if err != nil {
		return 0, err
	}
	if obj.Type != firmware.TypeInteger {
		return 0, firmware.ErrNotInteger
	}
	return obj.Integer, nil
}

func (f *Firmware) EvaluateObject(node firmware.Handle, method string, args []firmware.Object) (firmware.Object, error) {
	return f.evaluate(node, method, args)
}

// argc per method; argument 0 is always the address byte.
var methodArgc = map[string]int{
	"SRXB": 1, "SSXB": 2, "SRDB": 2, "SWRB": 3,
	"SRDW": 2, "SWRW": 3, "SBLR": 2, "SBLW": 3,
}

func (f *Firmware) evaluate(node firmware.Handle, method string, args []firmware.Object) (firmware.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if node == 0 || node != f.node {
		return firmware.Object{}, firmware.ErrNoNode
	}
	argc, ok := methodArgc[method]
	if !ok {
		return firmware.Object{}, firmware.ErrNoMethod
	}
	if err := f.faults[method]; err != nil {
		return firmware.Object{}, err
	}
	if len(args) != argc {
		return firmware.Object{}, firmware.ErrBadArgs
	}
	for i, a := range args {
		want := firmware.TypeInteger
		if method == "SBLW" && i == 2 {
			want = firmware.TypeBuffer
		}
		if a.Type != want {
			return firmware.Object{}, firmware.ErrBadArgs
		}
	}

	addr := uint8(args[0].Integer>>1) & 0x7F
	d := f.devices[addr]
	var cmd uint8
	if argc > 1 {
		cmd = uint8(args[1].Integer)
	}

	// Writes report failure as a zero result, reads as an evaluation error.
	switch method {
	case "SSXB", "SWRB", "SWRW", "SBLW":
		if d == nil {
			return firmware.Integer(0), nil
		}
	default:
		if d == nil {
			return firmware.Object{}, errNoDevice
		}
	}

	switch method {
	case "SRXB":
		v := d.regs[d.ptr]
		d.ptr++
		return firmware.Integer(uint64(v)), nil
	case "SSXB":
		d.ptr = cmd
		return firmware.Integer(1), nil
	case "SRDB":
		return firmware.Integer(uint64(d.regs[cmd])), nil
	case "SWRB":
		d.regs[cmd] = byte(args[2].Integer)
		return firmware.Integer(1), nil
	case "SRDW":
		return firmware.Integer(uint64(d.word(cmd))), nil
	case "SWRW":
		d.words[cmd] = uint16(args[2].Integer)
		return firmware.Integer(1), nil
	case "SBLR":
		b, ok := d.blocks[cmd]
		if !ok {
			return firmware.Object{}, firmware.ErrNoReturn
		}
		return firmware.Buffer(append([]byte(nil), b...)), nil
	default: // SBLW
		d.blocks[cmd] = append([]byte(nil), args[2].Buffer...)
		return firmware.Integer(1), nil
	}
}

var _ firmware.Evaluator = (*Firmware)(nil)
