package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"periph.io/x/conn/v3/i2c/i2creg"
	"tinygo.org/x/drivers/tmp102"

	"acpisbus/bus"
	"acpisbus/services/sbus"
	"acpisbus/services/sbus/internal/engine"
	"acpisbus/types"
)

const usage = `commands:
  recv ADDR                   receive byte
  send ADDR VAL               send byte
  get ADDR CMD [b|w|s]        read byte, word or block data
  set ADDR CMD VAL [b|w]      write byte or word data
  block ADDR CMD BYTE...      write block data
  temp [ADDR]                 read a TMP102 (default 0x48)
  watch ADDR CMD [b|w|s] [INTERVAL [COUNT]]
                              poll a register (default 1s, 5 samples)
  state                       print the retained adapter state
  funcs                       print adapter functionality
  buses                       list registered I2C buses
  run SCRIPT                  run commands from a file, one per line`

type cli struct {
	a   *sbus.Adapter
	bus *bus.Bus // carries adapter state and poller readings
	out io.Writer
}

func (c *cli) dispatch(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "recv":
		return c.recv(rest)
	case "send":
		return c.send(rest)
	case "get":
		return c.get(rest)
	case "set":
		return c.set(rest)
	case "block":
		return c.block(rest)
	case "temp":
		return c.temp(rest)
	case "watch":
		return c.watch(rest)
	case "state":
		return c.state()
	case "funcs":
		return c.funcs()
	case "buses":
		return c.buses()
	case "run":
		return c.script(rest)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// ---- Argument parsing ----

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func parseAddr(s string) (uint16, error) {
	v, err := parseUint(s, 7)
	return uint16(v), err
}

func needArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return errors.New("wrong number of arguments")
	}
	return nil
}

// addrCmd parses the leading ADDR CMD pair.
func addrCmd(args []string) (uint16, uint8, error) {
	addr, err := parseAddr(args[0])
	if err != nil {
		return 0, 0, err
	}
	cmd, err := parseUint(args[1], 8)
	return addr, uint8(cmd), err
}

func readSize(mode string) (types.Size, error) {
	switch mode {
	case "b":
		return types.SizeByteData, nil
	case "w":
		return types.SizeWordData, nil
	case "s":
		return types.SizeBlockData, nil
	}
	return 0, fmt.Errorf("bad mode %q", mode)
}

// ---- Commands ----

func (c *cli) recv(args []string) error {
	if err := needArgs(args, 1, 1); err != nil {
		return err
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	var d types.Data
	if err := c.a.Xfer(addr, types.Read, 0, types.SizeByte, &d); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "0x%02x\n", d.Byte)
	return nil
}

func (c *cli) send(args []string) error {
	if err := needArgs(args, 2, 2); err != nil {
		return err
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint(args[1], 8)
	if err != nil {
		return err
	}
	return c.a.Xfer(addr, types.Write, uint8(v), types.SizeByte, nil)
}

func (c *cli) get(args []string) error {
	if err := needArgs(args, 2, 3); err != nil {
		return err
	}
	addr, cmd, err := addrCmd(args)
	if err != nil {
		return err
	}
	mode := "b"
	if len(args) == 3 {
		mode = args[2]
	}
	size, err := readSize(mode)
	if err != nil {
		return err
	}

	req := engine.Request{Addr: addr, RW: types.Read, Size: size, Command: cmd, Data: &types.Data{}}
	n, err := c.a.Execute(req)
	if err != nil {
		return err
	}
	switch req.Size {
	case types.SizeByteData:
		fmt.Fprintf(c.out, "0x%02x\n", req.Data.Byte)
	case types.SizeWordData:
		fmt.Fprintf(c.out, "0x%04x\n", req.Data.Word)
	default:
		fmt.Fprintf(c.out, "%d: % x\n", n, req.Data.Block[:n])
	}
	return nil
}

func (c *cli) set(args []string) error {
	if err := needArgs(args, 3, 4); err != nil {
		return err
	}
	addr, cmd, err := addrCmd(args)
	if err != nil {
		return err
	}
	mode := "b"
	if len(args) == 4 {
		mode = args[3]
	}
	var d types.Data
	switch mode {
	case "b":
		v, err := parseUint(args[2], 8)
		if err != nil {
			return err
		}
		d.Byte = uint8(v)
		return c.a.Xfer(addr, types.Write, cmd, types.SizeByteData, &d)
	case "w":
		v, err := parseUint(args[2], 16)
		if err != nil {
			return err
		}
		d.Word = uint16(v)
		return c.a.Xfer(addr, types.Write, cmd, types.SizeWordData, &d)
	}
	return fmt.Errorf("bad mode %q", mode)
}

func (c *cli) block(args []string) error {
	if err := needArgs(args, 2, 2+types.BlockMax); err != nil {
		return err
	}
	addr, cmd, err := addrCmd(args)
	if err != nil {
		return err
	}
	var d types.Data
	d.Block[0] = byte(len(args) - 2)
	for i, s := range args[2:] {
		v, err := parseUint(s, 8)
		if err != nil {
			return err
		}
		d.Block[1+i] = byte(v)
	}
	return c.a.Xfer(addr, types.Write, cmd, types.SizeBlockData, &d)
}

func (c *cli) temp(args []string) error {
	if err := needArgs(args, 0, 1); err != nil {
		return err
	}
	addr := uint16(tmp102.Address)
	if len(args) == 1 {
		var err error
		if addr, err = parseAddr(args[0]); err != nil {
			return err
		}
	}
	bc := c.a.Bus()
	defer bc.Close()

	dev := tmp102.New(bc)
	dev.Configure(tmp102.Config{Address: uint8(addr)})
	if !dev.Connected() {
		return fmt.Errorf("no TMP102 at 0x%02x", addr)
	}
	mc, err := dev.ReadTemperature()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%.3f C\n", float64(mc)/1000)
	return nil
}

func (c *cli) watch(args []string) error {
	if err := needArgs(args, 2, 5); err != nil {
		return err
	}
	addr, cmd, err := addrCmd(args)
	if err != nil {
		return err
	}
	mode, interval, count := "b", time.Second, 5
	if len(args) > 2 {
		mode = args[2]
	}
	size, err := readSize(mode)
	if err != nil {
		return err
	}
	if len(args) > 3 {
		if interval, err = time.ParseDuration(args[3]); err != nil {
			return err
		}
	}
	if len(args) > 4 {
		if count, err = strconv.Atoi(args[4]); err != nil || count < 1 {
			return fmt.Errorf("bad count %q", args[4])
		}
	}

	sub := c.bus.NewConnection("sbusctl").Subscribe(sbus.ValueTopic(addr, cmd))
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sbus.NewPoller(c.a, c.bus.NewConnection("poller"), interval, []sbus.PollRead{
		{Addr: addr, Command: cmd, Size: size},
	}).Start(ctx)

	for i := 0; i < count; i++ {
		rd := (<-sub.Channel()).Payload.(sbus.Reading)
		ts := time.Unix(0, rd.TS).Format("15:04:05.000")
		switch {
		case rd.Err != "":
			fmt.Fprintf(c.out, "%s error %s\n", ts, rd.Err)
		case size == types.SizeBlockData:
			fmt.Fprintf(c.out, "%s %d: % x\n", ts, len(rd.Block), rd.Block)
		default:
			fmt.Fprintf(c.out, "%s 0x%04x\n", ts, rd.Value)
		}
	}
	return nil
}

func (c *cli) state() error {
	sub := c.bus.NewConnection("sbusctl").Subscribe(sbus.TopicState)
	defer sub.Unsubscribe()

	select {
	case m := <-sub.Channel():
		st, ok := m.Payload.(types.HALState)
		if !ok {
			return fmt.Errorf("unexpected state payload %T", m.Payload)
		}
		fmt.Fprintf(c.out, "%s/%s\n", st.Level, st.Status)
		return nil
	default:
		return errors.New("no adapter state published")
	}
}

var funcNames = []struct {
	f    types.Func
	name string
}{
	{types.FuncSMBusReadByte, "read byte"},
	{types.FuncSMBusWriteByte, "write byte"},
	{types.FuncSMBusReadByteData, "read byte data"},
	{types.FuncSMBusWriteByteData, "write byte data"},
	{types.FuncSMBusReadWordData, "read word data"},
	{types.FuncSMBusWriteWordData, "write word data"},
	{types.FuncSMBusReadBlockData, "read block data"},
	{types.FuncSMBusWriteBlockData, "write block data"},
}

func (c *cli) funcs() error {
	f := c.a.Functionality()
	fmt.Fprintf(c.out, "%s: 0x%08x\n", c.a.Name(), uint32(f))
	for _, fn := range funcNames {
		yn := "no"
		if f.Has(fn.f) {
			yn = "yes"
		}
		fmt.Fprintf(c.out, "  %-18s %s\n", fn.name, yn)
	}
	return nil
}

func (c *cli) buses() error {
	for _, r := range i2creg.All() {
		fmt.Fprintf(c.out, "%s\tnumber=%d\taliases=%s\n", r.Name, r.Number, strings.Join(r.Aliases, ","))
	}
	return nil
}

// script runs each non-blank, non-comment line of a file as a command.
func (c *cli) script(args []string) error {
	if err := needArgs(args, 1, 1); err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		words, err := shlex.Split(text)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", args[0], line, err)
		}
		if len(words) > 0 && words[0] == "run" {
			return fmt.Errorf("%s:%d: nested run", args[0], line)
		}
		if err := c.dispatch(words); err != nil {
			return fmt.Errorf("%s:%d: %w", args[0], line, err)
		}
	}
	return sc.Err()
}
