package adc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/analog"
)

// PinConverter emulates a continuous converter on top of an
// analog.PinADC: a ticker goroutine reads the pin every Period and raises
// the end of conversion interrupt.
type PinConverter struct {
	pin    analog.PinADC
	clk    clockwork.Clock
	period time.Duration

	mu      sync.Mutex
	cfg     Config
	handler func()
	stop    chan struct{}
	done    chan struct{}

	calibrated atomic.Bool
	eoc        atomic.Bool
	value      atomic.Uint32
	err        atomic.Pointer[error]
}

// NewPinConverter returns a converter reading pin every period. clk may be
// nil to use the real clock.
func NewPinConverter(pin analog.PinADC, period time.Duration, clk clockwork.Clock) *PinConverter {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &PinConverter{pin: pin, clk: clk, period: period}
}

// Configure implements Converter.
func (p *PinConverter) Configure(cfg Config) error {
	if p.pin == nil {
		return errors.New("adc: no analog pin")
	}
	if p.period <= 0 {
		return fmt.Errorf("adc: invalid conversion period %s", p.period)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	return nil
}

// ResetCalibration implements Converter.
func (p *PinConverter) ResetCalibration() error {
	p.calibrated.Store(false)
	return nil
}

// ResetCalibrationDone implements Converter.
func (p *PinConverter) ResetCalibrationDone() bool {
	return true
}

// StartCalibration implements Converter. The pin is assumed to be
// calibrated already.
func (p *PinConverter) StartCalibration() error {
	p.calibrated.Store(true)
	return nil
}

// CalibrationDone implements Converter.
func (p *PinConverter) CalibrationDone() bool {
	return p.calibrated.Load()
}

// EnableInterrupt implements Converter.
func (p *PinConverter) EnableInterrupt(handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	return nil
}

// StartConversion implements Converter. It starts the ticker goroutine.
func (p *PinConverter) StartConversion() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("adc: conversion already running")
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.clk.NewTicker(p.period), p.handler, p.cfg, p.stop, p.done)
	return nil
}

func (p *PinConverter) run(t clockwork.Ticker, handler func(), cfg Config, stop, done chan struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
		}
		s, err := p.pin.Read()
		if err != nil {
			p.err.Store(&err)
			continue
		}
		p.value.Store(uint32(align(cfg, s.Raw)))
		p.eoc.Store(true)
		if handler != nil {
			handler()
		}
		if !cfg.Continuous {
			return
		}
	}
}

// align clamps raw to the configured resolution and places it in the data
// register.
func align(cfg Config, raw int32) uint16 {
	full := int32(1)<<cfg.Bits - 1
	raw = max(0, min(raw, full))
	if cfg.Align == AlignLeft {
		return uint16(raw << (16 - cfg.Bits))
	}
	return uint16(raw)
}

// EOCPending implements Converter.
func (p *PinConverter) EOCPending() bool {
	return p.eoc.Load()
}

// Value implements Converter.
func (p *PinConverter) Value() uint16 {
	return uint16(p.value.Load())
}

// ClearEOC implements Converter.
func (p *PinConverter) ClearEOC() {
	p.eoc.Store(false)
}

// Err returns and clears the last pin read error.
func (p *PinConverter) Err() error {
	if e := p.err.Swap(nil); e != nil {
		return *e
	}
	return nil
}

// Halt stops the ticker goroutine and waits for it to exit.
func (p *PinConverter) Halt() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

var _ Converter = &PinConverter{}
