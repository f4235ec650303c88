package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acpisbus/services/sbus/internal/firmware"
	"acpisbus/services/sbus/internal/namespace"
)

func addrArg(addr uint8, read bool) firmware.Object {
	v := uint64(addr) << 1
	if read {
		v |= 1
	}
	return firmware.Integer(v)
}

func TestBuildDefault(t *testing.T) {
	tree, fw, err := Build(DefaultSpec())
	require.NoError(t, err)

	h, err := tree.Lookup(`\_SB.PCI0.SBUS`)
	require.NoError(t, err)
	assert.Equal(t, h, fw.Node())

	var names []string
	tree.Walk(namespace.KindDevice, tree.Root(), namespace.MaxDepth, func(n firmware.Handle, _ int) namespace.Status {
		name, _ := tree.Name(n)
		names = append(names, name)
		return namespace.OK
	})
	assert.Equal(t, []string{"PCI0", "SBUS", "LPCB"}, names)
}

func TestMethods(t *testing.T) {
	_, fw, err := Build(DefaultSpec())
	require.NoError(t, err)
	n := fw.Node()

	w, err := fw.EvaluateInteger(n, "SRDW", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x09)})
	require.NoError(t, err)
	assert.Equal(t, uint64(12450), w)

	ok, err := fw.EvaluateInteger(n, "SWRB", []firmware.Object{addrArg(0x0B, false), firmware.Integer(0x40), firmware.Integer(0x5A)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ok)
	b, err := fw.EvaluateInteger(n, "SRDB", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x40)})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x5A), b)

	// Send byte sets the pointer, receive byte reads and advances it.
	_, err = fw.EvaluateInteger(n, "SSXB", []firmware.Object{addrArg(0x0B, false), firmware.Integer(0x40)})
	require.NoError(t, err)
	b, err = fw.EvaluateInteger(n, "SRXB", []firmware.Object{addrArg(0x0B, true)})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x5A), b)
	b, err = fw.EvaluateInteger(n, "SRXB", []firmware.Object{addrArg(0x0B, true)})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), b)

	obj, err := fw.EvaluateObject(n, "SBLR", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x20)})
	require.NoError(t, err)
	assert.Equal(t, firmware.TypeBuffer, obj.Type)
	assert.Equal(t, "SIMBATT", string(obj.Buffer))

	// A block register the device does not have returns nothing.
	_, err = fw.EvaluateObject(n, "SBLR", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x22)})
	assert.ErrorIs(t, err, firmware.ErrNoReturn)

	_, err = fw.EvaluateInteger(n, "SBLW", []firmware.Object{addrArg(0x0B, false), firmware.Integer(0x21), firmware.Buffer([]byte{1, 2, 3})})
	require.NoError(t, err)
	blk, ok2 := fw.Block(0x0B, 0x21)
	require.True(t, ok2)
	assert.Equal(t, []byte{1, 2, 3}, blk)

	_, err = fw.EvaluateInteger(n, "SWRW", []firmware.Object{addrArg(0x0B, false), firmware.Integer(0x0D), firmware.Integer(0x1234)})
	require.NoError(t, err)
	word, _ := fw.Word(0x0B, 0x0D)
	assert.Equal(t, uint16(0x1234), word)
}

func TestFailures(t *testing.T) {
	_, fw, err := Build(DefaultSpec())
	require.NoError(t, err)
	n := fw.Node()

	// absent device: writes return zero, reads fail
	v, err := fw.EvaluateInteger(n, "SWRB", []firmware.Object{addrArg(0x33, false), firmware.Integer(0), firmware.Integer(1)})
	require.NoError(t, err)
	assert.Zero(t, v)
	_, err = fw.EvaluateInteger(n, "SRDB", []firmware.Object{addrArg(0x33, true), firmware.Integer(0)})
	assert.Error(t, err)

	_, err = fw.EvaluateInteger(n+100, "SRXB", []firmware.Object{addrArg(0x0B, true)})
	assert.ErrorIs(t, err, firmware.ErrNoNode)
	_, err = fw.EvaluateInteger(n, "SQCK", []firmware.Object{addrArg(0x0B, true)})
	assert.ErrorIs(t, err, firmware.ErrNoMethod)
	_, err = fw.EvaluateInteger(n, "SRDB", []firmware.Object{addrArg(0x0B, true)})
	assert.ErrorIs(t, err, firmware.ErrBadArgs)
	_, err = fw.EvaluateInteger(n, "SBLW", []firmware.Object{addrArg(0x0B, false), firmware.Integer(0), firmware.Integer(1)})
	assert.ErrorIs(t, err, firmware.ErrBadArgs)
	_, err = fw.EvaluateInteger(n, "SBLR", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x20)})
	assert.ErrorIs(t, err, firmware.ErrNotInteger)

	fw.SetFault("SRDW", firmware.ErrExecutionErr)
	_, err = fw.EvaluateInteger(n, "SRDW", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x09)})
	assert.ErrorIs(t, err, firmware.ErrExecutionErr)
	fw.SetFault("SRDW", nil)
	_, err = fw.EvaluateInteger(n, "SRDW", []firmware.Object{addrArg(0x0B, true), firmware.Integer(0x09)})
	assert.NoError(t, err)
}

func TestLoadSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	doc := `
nodes:
  - path: '\_SB.PCI0'
  - path: '\_SB.PCI0.SBUS'
    detached: true
  - path: '\_SB.PCI0.SBUS.SRXB'
    kind: method
sbus: '\_SB.PCI0.SBUS'
devices:
  - address: 0x50
    registers: {0: 0xAA, 1: 0xBB}
    blocks: {32: [1, 2, 3]}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.Len(t, spec.Nodes, 3)
	assert.True(t, spec.Nodes[1].Detached)

	tree, fw, err := Build(spec)
	require.NoError(t, err)
	_, err = tree.Device(fw.Node())
	assert.ErrorIs(t, err, namespace.ErrNoDevice)

	r, ok := fw.Register(0x50, 1)
	require.True(t, ok)
	assert.Equal(t, byte(0xBB), r)
	blk, ok := fw.Block(0x50, 32)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, blk)

	_, err = LoadSpec(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	_, _, err = Build(Spec{Nodes: []NodeSpec{{Path: `\X`, Kind: "bogus"}}})
	assert.Error(t, err)
	_, _, err = Build(Spec{SBus: `\_SB.NONE`})
	assert.Error(t, err)
}
