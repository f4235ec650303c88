package sbus

import (
	"context"
	"fmt"
	"time"

	"acpisbus/bus"
	"acpisbus/errcode"
	"acpisbus/services/sbus/internal/engine"
	"acpisbus/types"
)

// TopicPollConfig takes a PollConfig message that changes the poll interval.
var TopicPollConfig = bus.Topic{"config", "sbus", "poll"}

// ValueTopic is where readings of (addr, command) are published.
func ValueTopic(addr uint16, command uint8) bus.Topic {
	return bus.Topic{"hal", "sbus", "value", fmt.Sprintf("0x%02x", addr), fmt.Sprintf("0x%02x", command)}
}

// PollRead is one register to sample.
type PollRead struct {
	Addr    uint16
	Command uint8
	Size    types.Size // SizeByteData, SizeWordData or SizeBlockData
}

// PollConfig is the payload accepted on TopicPollConfig.
type PollConfig struct {
	Interval time.Duration
}

// Reading is a published sample. Err holds the error code when the read failed.
type Reading struct {
	Addr    uint16
	Command uint8
	Size    types.Size
	Value   uint16 // byte and word reads
	Block   []byte // block reads
	Err     errcode.Code
	TS      int64
}

// Poller samples registers through an adapter at a fixed interval.
type Poller struct {
	a        *Adapter
	conn     *bus.Connection
	interval time.Duration
	reads    []PollRead
}

func NewPoller(a *Adapter, conn *bus.Connection, interval time.Duration, reads []PollRead) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{a: a, conn: conn, interval: interval, reads: append([]PollRead(nil), reads...)}
}

// Run samples once immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	cfgSub := p.conn.Subscribe(TopicPollConfig)
	defer p.conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	p.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.sample()
		case msg := <-cfgSub.Channel():
			pc, ok := msg.Payload.(PollConfig)
			if !ok || pc.Interval <= 0 {
				p.a.log.Warn("ignoring poll config", "payload", msg.Payload)
				continue
			}
			p.interval = pc.Interval
			tick.Reset(pc.Interval)
			p.a.log.Info("poll interval set", "interval", pc.Interval)
		}
	}
}

// Start runs the poller in its own goroutine.
func (p *Poller) Start(ctx context.Context) {
	go p.Run(ctx)
}

func (p *Poller) sample() {
	for _, r := range p.reads {
		rd := Reading{Addr: r.Addr, Command: r.Command, Size: r.Size}
		d := &types.Data{}
		n, err := p.a.Execute(engine.Request{Addr: r.Addr, RW: types.Read, Size: r.Size, Command: r.Command, Data: d})
		switch {
		case err != nil:
			rd.Err = errcode.Of(err)
		case r.Size == types.SizeBlockData:
			rd.Block = append([]byte(nil), d.Block[:n]...)
		case r.Size == types.SizeWordData:
			rd.Value = d.Word
		default:
			rd.Value = uint16(d.Byte)
		}
		rd.TS = time.Now().UnixNano()
		p.conn.Publish(p.conn.NewMessage(ValueTopic(r.Addr, r.Command), rd, true))
	}
}
