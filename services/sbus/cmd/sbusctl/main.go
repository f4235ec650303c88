// Command sbusctl loads the SBUS adapter over a simulated platform and runs
// SMBus transactions against it.
//
//	sbusctl [-config FILE] [-sim FILE] [-env FILE] COMMAND [ARGS...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"acpisbus/bus"
	"acpisbus/errcode"
	"acpisbus/services/sbus"
	"acpisbus/services/sbus/internal/sim"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fl := flag.NewFlagSet("sbusctl", flag.ContinueOnError)
	fl.SetOutput(stderr)
	cfgPath := fl.String("config", "", "adapter config (YAML)")
	simPath := fl.String("sim", "", "simulated platform (YAML); empty uses the built-in board")
	envPath := fl.String("env", ".env", "environment file loaded before the config")
	fl.Usage = func() {
		fmt.Fprintln(stderr, "usage: sbusctl [flags] COMMAND [ARGS...]")
		fl.PrintDefaults()
		fmt.Fprintln(stderr, usage)
	}
	if err := fl.Parse(args); err != nil {
		return 2
	}
	if fl.NArg() == 0 {
		fl.Usage()
		return 2
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stderr, "sbusctl:", err)
		return 1
	}
	cfg, err := sbus.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "sbusctl:", err)
		return 1
	}
	log, closeLog := newLogger(cfg.Log, stderr)
	defer closeLog()

	spec := sim.DefaultSpec()
	if *simPath != "" {
		if spec, err = sim.LoadSpec(*simPath); err != nil {
			log.Error("load sim", "err", err)
			return 1
		}
	}
	tree, fw, err := sim.Build(spec)
	if err != nil {
		log.Error("build sim", "err", err)
		return 1
	}

	b := bus.NewBus(16)
	a, err := sbus.Load(cfg, sbus.Deps{
		Namespace: tree,
		Firmware:  fw,
		Registry:  sbus.PeriphRegistry{},
		Conn:      b.NewConnection("sbus"),
		Logger:    log,
	})
	defer a.Unload()
	if err != nil {
		log.Error("load adapter", "err", err, "errno", errcode.Errno(err))
		return 1
	}

	c := &cli{a: a, bus: b, out: stdout}
	if err := c.dispatch(fl.Args()); err != nil {
		fmt.Fprintln(stderr, "sbusctl:", err)
		return 1
	}
	return 0
}

// newLogger builds the text handler from cfg, rotating into a file when one
// is configured.
func newLogger(cfg sbus.LogConfig, stderr io.Writer) (*slog.Logger, func()) {
	lvl, _ := cfg.SlogLevel()
	var w io.Writer = stderr
	closeFn := func() {}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = lj
		closeFn = func() { _ = lj.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeFn
}
