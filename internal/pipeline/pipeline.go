// Package pipeline pulls decoded device events, updates pointer state,
// consults the gating decision and writes encoded sequences to the
// active terminal.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"conmouse/internal/evdev"
	"conmouse/internal/pointer"
	"conmouse/internal/protocol"
)

// EventSource is the device side of the pipeline. *evdev.Device
// implements it; tests substitute synthetic sources.
type EventSource interface {
	ReadEvent() (evdev.InputEvent, error)
	AbsRange(axis int) (min, max int32, ok bool)
}

// Output is one terminal's write side. *term.Sink implements it.
type Output interface {
	io.Writer
	Size() (width, height int)
}

// Target resolves, for each event, which terminal should receive it and
// whether that terminal wants it. Implementations must hand back a
// consistent sink/gate pairing even while the active terminal is
// switching underneath the pipeline.
type Target interface {
	Resolve() (out Output, gate Gate, ok bool)
}

// FixedTarget is the single-terminal target: one sink, one gate, for
// the daemon's whole lifetime.
type FixedTarget struct {
	Out  Output
	Gate Gate
}

func (t FixedTarget) Resolve() (Output, Gate, bool) {
	return t.Out, t.Gate, true
}

// DeliveredEvent describes one sequence the pipeline wrote, for
// monitoring hooks.
type DeliveredEvent struct {
	Action    string `json:"action"`
	Button    int    `json:"button"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Timestamp int64  `json:"ts"`
}

// Polling and backoff intervals for the main loop.
const (
	idleDelay    = 2 * time.Millisecond
	errorBackoff = 100 * time.Millisecond
	sizeInterval = time.Second
)

// maxScrollSteps bounds how many scroll sequences one wheel event may
// emit. Real wheels report small deltas; a corrupt value must not spin
// the emit loop.
const maxScrollSteps = 8

// Pipeline is the orchestrator: one per monitored input device.
type Pipeline struct {
	source  EventSource
	target  Target
	proto   protocol.Protocol
	tracker *pointer.Tracker

	pendingDX int
	pendingDY int
	absMoved  bool
	lastSize  time.Time

	delivered atomic.Uint64
	onDeliver func(DeliveredEvent)
}

// New builds a pipeline for one device, one wire protocol and one
// routing target.
func New(source EventSource, target Target, proto protocol.Protocol) *Pipeline {
	return &Pipeline{
		source:  source,
		target:  target,
		proto:   proto,
		tracker: pointer.NewTracker(pointer.DefaultWidth, pointer.DefaultHeight),
	}
}

// SetOnDeliver registers a hook fired after each written sequence.
// Must be set before Run.
func (p *Pipeline) SetOnDeliver(fn func(DeliveredEvent)) {
	p.onDeliver = fn
}

// Delivered returns the number of sequences written so far.
func (p *Pipeline) Delivered() uint64 {
	return p.delivered.Load()
}

// Run pumps the device until the context is cancelled. Transient read
// errors are logged and retried after a bounded backoff; they never
// kill the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Printf("Pipeline: running, protocol=%s", p.proto)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := p.source.ReadEvent()
		if errors.Is(err, evdev.ErrNoData) {
			// Nothing queued; yield briefly instead of spinning.
			sleepCtx(ctx, idleDelay)
			continue
		}
		if err != nil {
			log.Printf("Pipeline: device read error: %v", err)
			sleepCtx(ctx, errorBackoff)
			continue
		}
		p.handle(ev)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handle processes one decoded event in kernel delivery order.
func (p *Pipeline) handle(ev evdev.InputEvent) {
	switch ev.Type {
	case evdev.EvRel:
		switch ev.Code {
		case evdev.RelX:
			p.pendingDX += int(ev.Value)
		case evdev.RelY:
			p.pendingDY += int(ev.Value)
		case evdev.RelWheel:
			p.scroll(int(ev.Value))
		}

	case evdev.EvAbs:
		p.refreshSize()
		switch ev.Code {
		case evdev.AbsX:
			if min, max, ok := p.source.AbsRange(evdev.AbsX); ok {
				p.tracker.MoveAbsoluteX(int(ev.Value), int(min), int(max))
				p.absMoved = true
			}
		case evdev.AbsY:
			if min, max, ok := p.source.AbsRange(evdev.AbsY); ok {
				p.tracker.MoveAbsoluteY(int(ev.Value), int(min), int(max))
				p.absMoved = true
			}
		}

	case evdev.EvKey:
		if ev.Value == evdev.KeyRepeat {
			return
		}
		pressed := ev.Value == evdev.KeyPress
		button, ok := p.tracker.SetButton(int(ev.Code), pressed)
		if !ok {
			return
		}
		action := protocol.Release
		if pressed {
			action = protocol.Press
		}
		p.emit(action, button)

	case evdev.EvSyn:
		if ev.Code == evdev.SynReport {
			p.flushMotion()
		}
	}
}

// flushMotion applies the deltas accumulated since the last sync report
// as one clamped step and reports motion while a button is held.
func (p *Pipeline) flushMotion() {
	moved := p.absMoved
	if p.pendingDX != 0 || p.pendingDY != 0 {
		p.refreshSize()
		p.tracker.MoveRelative(p.pendingDX, p.pendingDY)
		p.pendingDX, p.pendingDY = 0, 0
		moved = true
	}
	p.absMoved = false
	if !moved {
		return
	}
	if button, held := p.tracker.HeldButton(); held {
		p.emit(protocol.Motion, button)
	}
}

func (p *Pipeline) scroll(delta int) {
	if delta == 0 {
		return
	}
	action := protocol.ScrollUp
	if delta < 0 {
		action = protocol.ScrollDown
		delta = -delta
	}
	if delta > maxScrollSteps || delta < 0 {
		delta = maxScrollSteps
	}
	for i := 0; i < delta; i++ {
		p.emit(action, 0)
	}
}

// refreshSize re-queries the terminal dimensions at most once per
// second, never per event.
func (p *Pipeline) refreshSize() {
	if time.Since(p.lastSize) < sizeInterval {
		return
	}
	p.lastSize = time.Now()
	if out, _, ok := p.target.Resolve(); ok {
		p.tracker.SetSize(out.Size())
	}
}

// emit consults the gate and, on a positive decision, encodes and
// writes the action. The gate is asked fresh for every event.
func (p *Pipeline) emit(action protocol.Action, button int) {
	out, gate, ok := p.target.Resolve()
	if !ok || gate == nil || !gate.ShouldDeliver() {
		return
	}

	x, y := p.tracker.Position()
	seq := protocol.Encode(p.proto, action, button, x, y)
	if len(seq) == 0 {
		return
	}
	if _, err := out.Write(seq); err != nil {
		log.Printf("Pipeline: terminal write failed: %v", err)
		return
	}
	p.delivered.Add(1)
	if p.onDeliver != nil {
		p.onDeliver(DeliveredEvent{
			Action:    action.String(),
			Button:    button,
			X:         x,
			Y:         y,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}
