package st7789

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync/atomic"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers/pixel"
)

// Engine is an asynchronous transfer engine. Start begins moving p and
// returns immediately; Busy reports whether a transfer is still in flight.
// p must not be touched by the caller until Busy returns false.
type Engine interface {
	Start(p []byte) error
	Busy() bool
}

// Source is a readable store of pixel data, typically serial flash. Start
// fills p with the next bytes following the address given to Open.
type Source interface {
	Engine
	Open(addr uint32) error
	Close() error
}

// Plan splits Total pixels into Full chunks of Capacity pixels plus a
// Remainder.
type Plan struct {
	Total     int
	Capacity  int
	Full      int
	Remainder int
}

// NewPlan returns the chunking of total pixels through buffers of capacity
// pixels.
func NewPlan(total, capacity int) Plan {
	if capacity <= 0 || total <= 0 {
		return Plan{Total: total, Capacity: capacity}
	}
	return Plan{
		Total:     total,
		Capacity:  capacity,
		Full:      total / capacity,
		Remainder: total % capacity,
	}
}

// Writes returns the number of panel writes the plan issues.
func (p Plan) Writes() int {
	if p.Remainder > 0 {
		return p.Full + 1
	}
	return p.Full
}

// Staging is the buffer pair used by DrawRegionFromSource. One buffer fills
// from the source while the other drains to the panel; Parity names the one
// currently filling. A Staging is owned by its caller and must not be shared
// between concurrent transfers.
type Staging struct {
	buf    [2]pixel.Image[pixel.RGB565BE]
	parity int
}

// NewStaging allocates two buffers of n pixels each.
//
// It panics if n is not in [1, 32767].
func NewStaging(n int) *Staging {
	if n <= 0 || n > 0x7FFF {
		panic("st7789: staging capacity out of range")
	}
	return &Staging{
		buf: [2]pixel.Image[pixel.RGB565BE]{
			pixel.NewImage[pixel.RGB565BE](n, 1),
			pixel.NewImage[pixel.RGB565BE](n, 1),
		},
	}
}

// Capacity returns the size of each buffer in pixels.
func (s *Staging) Capacity() int {
	return s.buf[0].Len()
}

// Parity returns the index of the buffer that fills next.
func (s *Staging) Parity() int {
	return s.parity
}

// Buffer returns the raw bytes of buffer i.
func (s *Staging) Buffer(i int) []byte {
	return s.buf[i&1].RawBuffer()
}

// chunk returns the first n pixels of buffer i as bytes.
func (s *Staging) chunk(i, n int) []byte {
	return s.buf[i].Rescale(n, 1).RawBuffer()
}

// DrawRegionFromSource streams a w×h image stored at addr in src into the
// panel region whose top-left corner is (x, y).
//
// Reads and writes alternate between the two buffers of st, starting with
// buffer 0 on every call. A buffer is
// refilled only after the transmit engine reports idle, so the read of chunk
// n+1 overlaps the write of chunk n. Busy waits give up with ErrTimeout
// after Opts.BusyTimeout.
func (d *Dev) DrawRegionFromSource(x, y, w, h int, src Source, addr uint32, st *Staging) (err error) {
	if d.halted {
		return ErrHalted
	}
	if st == nil || src == nil {
		return errors.New("st7789: nil source or staging buffers")
	}
	if w <= 0 || h <= 0 {
		return ErrInvalidWindow
	}
	if !image.Rect(x, y, x+w, y+h).In(d.rect) {
		return ErrOutOfBounds
	}
	st.parity = 0
	if err := d.setWindow(x, y, x+w-1, y+h-1); err != nil {
		return err
	}
	d.stale = true
	if err := d.setDC(gpio.High); err != nil {
		return err
	}
	if err := d.selectChip(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = d.waitIdle(d.tx)
		}
		if e := d.deselectChip(); err == nil {
			err = e
		}
	}()

	if err := src.Open(addr); err != nil {
		return fmt.Errorf("st7789: failed to open source at %#x: %w", addr, err)
	}
	defer func() {
		if e := src.Close(); err == nil && e != nil {
			err = fmt.Errorf("st7789: failed to close source: %w", e)
		}
	}()

	plan := NewPlan(w*h, st.Capacity())
	unread := plan.Total
	n := min(plan.Capacity, unread)
	if err := src.Start(st.chunk(st.parity, n)); err != nil {
		return fmt.Errorf("st7789: source read failed: %w", err)
	}
	unread -= n

	for i := 0; i < plan.Full; i++ {
		if err := d.waitIdle(d.tx); err != nil {
			return err
		}
		if err := d.tx.Start(st.chunk(st.parity, plan.Capacity)); err != nil {
			return fmt.Errorf("st7789: pixel write failed: %w", err)
		}
		st.parity ^= 1
		if unread > 0 {
			n = min(plan.Capacity, unread)
			if err := src.Start(st.chunk(st.parity, n)); err != nil {
				return fmt.Errorf("st7789: source read failed: %w", err)
			}
			unread -= n
		}
	}

	if plan.Remainder > 0 {
		if err := d.waitIdle(d.tx); err != nil {
			return err
		}
		if err := d.tx.Start(st.chunk(st.parity, plan.Remainder)); err != nil {
			return fmt.Errorf("st7789: pixel write failed: %w", err)
		}
	}
	// Chip-select must stay asserted until the last byte is out.
	if err := d.waitIdle(d.tx); err != nil {
		return err
	}
	if e, ok := d.tx.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil {
			return fmt.Errorf("st7789: pixel write failed: %w", err)
		}
	}
	return nil
}

// waitIdle polls e until it is idle or the busy timeout expires.
func (d *Dev) waitIdle(e Engine) error {
	deadline := d.clk.Now().Add(d.busyTimeout)
	for e.Busy() {
		if !d.clk.Now().Before(deadline) {
			return ErrTimeout
		}
		runtime.Gosched()
	}
	return nil
}

// connEngine runs each transfer on its own goroutine so the caller can
// prepare the next chunk meanwhile.
type connEngine struct {
	c    conn.Conn
	busy atomic.Bool
	err  atomic.Pointer[error]
}

func (e *connEngine) Start(p []byte) error {
	if err := e.Err(); err != nil {
		return err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return errors.New("st7789: transfer already in flight")
	}
	go func() {
		if err := e.c.Tx(p, nil); err != nil {
			e.err.Store(&err)
		}
		e.busy.Store(false)
	}()
	return nil
}

func (e *connEngine) Busy() bool {
	return e.busy.Load()
}

// Err returns and clears the error of the last failed transfer.
func (e *connEngine) Err() error {
	if p := e.err.Swap(nil); p != nil {
		return *p
	}
	return nil
}
