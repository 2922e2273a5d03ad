// Package panelsim emulates the serial interface of an ST7789 controller.
//
// A Panel implements spi.PortCloser and spi.Conn. Every Tx is classified as
// command or data by sampling the DC pin, recorded in Ops, and decoded into a
// GRAM so tests and host previews can look at what a real panel would show.
package panelsim

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789/rgb565"
)

// GRAM geometry of the controller.
const (
	GRAMWidth  = 240
	GRAMHeight = 320
)

const (
	swreset  = 0x01
	slpin    = 0x10
	slpout   = 0x11
	invoff   = 0x20
	invon    = 0x21
	dispoff  = 0x28
	dispon   = 0x29
	caset    = 0x2A
	raset    = 0x2B
	ramwr    = 0x2C
	vscrdef  = 0x33
	madctl   = 0x36
	vscrsadd = 0x37
	colmod   = 0x3A

	madctlMY = 0x80
	madctlMX = 0x40
	madctlMV = 0x20
)

// Op is one recorded transaction.
type Op struct {
	Cmd bool   // DC was low
	W   []byte // bytes clocked in
}

// Panel is an emulated controller.
//
// The visible glass is W×H pixels starting at (ColOffset, RowOffset) in GRAM.
type Panel struct {
	DC gpio.PinIn // sampled on every Tx; required
	CS gpio.PinIn // optional; bytes are ignored while it reads High

	W, H                 int
	ColOffset, RowOffset int

	mu        sync.Mutex
	ops       []Op
	gram      *rgb565.Image
	cmd       byte
	args      []byte
	pending   []byte
	col, row  int
	colStart  int
	colEnd    int
	rowStart  int
	rowEnd    int
	madctl    byte
	colmod    byte
	sleeping  bool
	on        bool
	inverted  bool
	scrollDef [3]int
	scrollTop int
	frames    int
	connected bool
	closed    bool
}

// New returns an emulated panel showing w×h pixels of GRAM at the given
// offsets. dc must be the pin handed to the driver as its DC line.
func New(dc gpio.PinIn, w, h, colOffset, rowOffset int) *Panel {
	p := &Panel{
		DC:        dc,
		W:         w,
		H:         h,
		ColOffset: colOffset,
		RowOffset: rowOffset,
	}
	p.reset()
	return p
}

func (p *Panel) reset() {
	p.gram = rgb565.NewImage(image.Rect(0, 0, GRAMWidth, GRAMHeight))
	p.cmd = 0
	p.args = nil
	p.pending = nil
	p.colStart, p.colEnd = 0, GRAMWidth-1
	p.rowStart, p.rowEnd = 0, GRAMHeight-1
	p.madctl = 0
	p.colmod = 0x66
	p.sleeping = true
	p.on = false
	p.inverted = false
	p.scrollDef = [3]int{0, GRAMHeight, 0}
	p.scrollTop = 0
}

func (p *Panel) String() string {
	return fmt.Sprintf("panelsim{%dx%d}", p.W, p.H)
}

// Close implements spi.PortCloser.
func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// LimitSpeed implements spi.PortCloser.
func (p *Panel) LimitSpeed(f physic.Frequency) error {
	return nil
}

// Connect implements spi.Port.
func (p *Panel) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil, errors.New("panelsim: Connect cannot be called twice")
	}
	if bits != 8 {
		return nil, fmt.Errorf("panelsim: %d bits per word unsupported", bits)
	}
	p.connected = true
	return p, nil
}

// Duplex implements conn.Conn.
func (p *Panel) Duplex() conn.Duplex {
	return conn.Half
}

// TxPackets implements spi.Conn.
func (p *Panel) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := p.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Tx implements conn.Conn.
func (p *Panel) Tx(w, r []byte) error {
	if len(r) != 0 {
		return errors.New("panelsim: reads unsupported")
	}
	if p.CS != nil && p.CS.Read() == gpio.High {
		return nil
	}
	isCmd := p.DC.Read() == gpio.Low

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("panelsim: closed")
	}
	op := Op{Cmd: isCmd, W: make([]byte, len(w))}
	copy(op.W, w)
	p.ops = append(p.ops, op)
	if isCmd {
		for _, b := range w {
			p.command(b)
		}
		return nil
	}
	p.data(w)
	return nil
}

func (p *Panel) command(b byte) {
	p.cmd = b
	p.args = p.args[:0]
	p.pending = p.pending[:0]
	switch b {
	case swreset:
		p.reset()
	case slpin:
		p.sleeping = true
	case slpout:
		p.sleeping = false
	case invoff:
		p.inverted = false
	case invon:
		p.inverted = true
	case dispoff:
		p.on = false
	case dispon:
		p.on = true
	case ramwr:
		p.col, p.row = p.colStart, p.rowStart
		p.frames++
	}
}

func (p *Panel) data(w []byte) {
	if len(w) == 0 {
		return
	}
	if p.cmd == ramwr {
		p.pending = append(p.pending, w...)
		n := len(p.pending) &^ 1
		for i := 0; i < n; i += 2 {
			p.writePixel(rgb565.Color(uint16(p.pending[i])<<8 | uint16(p.pending[i+1])))
		}
		p.pending = append(p.pending[:0], p.pending[n:]...)
		return
	}
	p.args = append(p.args, w...)
	a := p.args
	switch p.cmd {
	case caset:
		if len(a) >= 4 {
			p.colStart, p.colEnd = int(a[0])<<8|int(a[1]), int(a[2])<<8|int(a[3])
		}
	case raset:
		if len(a) >= 4 {
			p.rowStart, p.rowEnd = int(a[0])<<8|int(a[1]), int(a[2])<<8|int(a[3])
		}
	case madctl:
		p.madctl = a[0]
	case colmod:
		p.colmod = a[0]
	case vscrdef:
		if len(a) >= 6 {
			p.scrollDef = [3]int{int(a[0])<<8 | int(a[1]), int(a[2])<<8 | int(a[3]), int(a[4])<<8 | int(a[5])}
		}
	case vscrsadd:
		if len(a) >= 2 {
			p.scrollTop = int(a[0])<<8 | int(a[1])
		}
	}
}

// writePixel stores c at the current address and advances it, wrapping to
// the window start.
func (p *Panel) writePixel(c rgb565.Color) {
	x, y := p.physical(p.col, p.row)
	p.gram.SetRGB565(x, y, c)
	p.col++
	if p.col > p.colEnd {
		p.col = p.colStart
		p.row++
		if p.row > p.rowEnd {
			p.row = p.rowStart
		}
	}
}

// physical maps a column/row address to a GRAM location following MADCTL.
func (p *Panel) physical(c, r int) (int, int) {
	maxC, maxR := GRAMWidth-1, GRAMHeight-1
	if p.madctl&madctlMV != 0 {
		maxC, maxR = maxR, maxC
	}
	if p.madctl&madctlMX != 0 {
		c = maxC - c
	}
	if p.madctl&madctlMY != 0 {
		r = maxR - r
	}
	if p.madctl&madctlMV != 0 {
		return r, c
	}
	return c, r
}

// Ops returns a copy of the recorded transactions.
func (p *Panel) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// ResetOps discards the recorded transactions.
func (p *Panel) ResetOps() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = nil
}

// At returns the colour of the visible pixel at (x, y) in native
// orientation.
func (p *Panel) At(x, y int) rgb565.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gram.RGB565At(x+p.ColOffset, y+p.RowOffset)
}

// GRAMAt returns the colour stored at a raw GRAM location.
func (p *Panel) GRAMAt(x, y int) rgb565.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gram.RGB565At(x, y)
}

// Snapshot copies the visible glass into a new image in native orientation.
// A sleeping or switched off panel shows black.
func (p *Panel) Snapshot() *rgb565.Image {
	img := rgb565.NewImage(image.Rect(0, 0, p.W, p.H))
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.on || p.sleeping {
		return img
	}
	for y := 0; y < p.H; y++ {
		src := p.gram.PixOffset(p.ColOffset, y+p.RowOffset)
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], p.gram.Pix[src:src+img.Stride])
	}
	return img
}

// State is the controller register state visible to tests.
type State struct {
	On, Sleeping, Inverted bool
	MADCTL, COLMOD         byte
	Window                 image.Rectangle // inclusive-exclusive, in address space
	ScrollArea             [3]int
	ScrollStart            int
	Frames                 int // RAMWR commands received
}

// State returns the decoded register state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		On:          p.on,
		Sleeping:    p.sleeping,
		Inverted:    p.inverted,
		MADCTL:      p.madctl,
		COLMOD:      p.colmod,
		Window:      image.Rect(p.colStart, p.rowStart, p.colEnd+1, p.rowEnd+1),
		ScrollArea:  p.scrollDef,
		ScrollStart: p.scrollTop,
		Frames:      p.frames,
	}
}
