package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func sbusctl(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	env := filepath.Join(t.TempDir(), "none.env")
	code := run(append([]string{"-env", env}, args...), &out, &errb)
	return code, out.String(), errb.String()
}

func TestReadCommands(t *testing.T) {
	code, out, _ := sbusctl(t, "get", "0x48", "0x00", "w")
	require.Equal(t, 0, code)
	assert.Equal(t, "0x0019\n", out)

	code, out, _ = sbusctl(t, "get", "0x0b", "0x20", "s")
	require.Equal(t, 0, code)
	assert.Equal(t, "7: 53 49 4d 42 41 54 54\n", out)
}

func TestTemp(t *testing.T) {
	code, out, errs := sbusctl(t, "temp")
	require.Equal(t, 0, code, errs)
	assert.Equal(t, "25.000 C\n", out)
}

func TestFuncsAndBuses(t *testing.T) {
	code, out, _ := sbusctl(t, "funcs")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "0x037e0000")
	assert.Contains(t, out, "read block data")
	assert.NotContains(t, out, " no\n")

	code, out, _ = sbusctl(t, "buses")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ACPI SBUS i2c")
	assert.Contains(t, out, "aliases=sbus")
}

func TestScript(t *testing.T) {
	script := writeFile(t, "cmds.txt", `
# byte and block round trips
set 0x0b 0x10 0x42
get 0x0b 0x10
block 0x0b 0x21 1 2 3
get "0x0b" 0x21 s
`)
	code, out, errs := sbusctl(t, "run", script)
	require.Equal(t, 0, code, errs)
	assert.Equal(t, "0x42\n3: 01 02 03\n", out)
}

func TestScriptReportsLine(t *testing.T) {
	script := writeFile(t, "bad.txt", "funcs\nfrobnicate\n")
	code, _, errs := sbusctl(t, "run", script)
	assert.Equal(t, 1, code)
	assert.Contains(t, errs, "bad.txt:2")
}

func TestErrors(t *testing.T) {
	code, _, _ := sbusctl(t)
	assert.Equal(t, 2, code)

	code, _, errs := sbusctl(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errs, "unknown command")

	code, _, _ = sbusctl(t, "get", "0x80", "0")
	assert.Equal(t, 1, code)

	// No device answers at 0x50.
	code, _, _ = sbusctl(t, "get", "0x50", "0")
	assert.Equal(t, 1, code)
}

func TestUnboundPlatform(t *testing.T) {
	spec := writeFile(t, "board.yaml", "nodes:\n  - path: '\\_SB.PCI0'\n")
	code, _, errs := sbusctl(t, "-sim", spec, "get", "0x48", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errs, "not_bound")
}

func TestWatch(t *testing.T) {
	code, out, errs := sbusctl(t, "watch", "0x48", "0x00", "w", "5ms", "2")
	require.Equal(t, 0, code, errs)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, " 0x0019"), l)
	}

	code, _, _ = sbusctl(t, "watch", "0x48", "0x00", "q")
	assert.Equal(t, 1, code)
}

func TestState(t *testing.T) {
	code, out, errs := sbusctl(t, "state")
	require.Equal(t, 0, code, errs)
	assert.Equal(t, "ready/bound\n", out)

	spec := writeFile(t, "board.yaml", "nodes:\n  - path: '\\_SB.PCI0'\n")
	code, out, errs = sbusctl(t, "-sim", spec, "state")
	require.Equal(t, 0, code, errs)
	assert.Equal(t, "idle/no_sbus\n", out)

	t.Setenv("SBUS_PLATFORM_DISABLED", "true")
	code, out, errs = sbusctl(t, "state")
	require.Equal(t, 0, code, errs)
	assert.Equal(t, "idle/disabled\n", out)
}
