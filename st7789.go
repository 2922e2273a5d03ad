package st7789

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789/rgb565"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/pixel"
)

var (
	// ErrHalted is returned by every drawing call after Halt.
	ErrHalted = errors.New("st7789: halted")
	// ErrTimeout is returned when a transfer engine stays busy past
	// Opts.BusyTimeout.
	ErrTimeout = errors.New("st7789: timed out waiting for transfer engine")
	// ErrInvalidWindow is returned for inverted corners, empty regions and
	// negative radii.
	ErrInvalidWindow = errors.New("st7789: invalid window")
	// ErrOutOfBounds is returned when a region that cannot be clipped does
	// not fit the display.
	ErrOutOfBounds = errors.New("st7789: region out of bounds")
)

// Opts is the configuration for the ST7789 display.
type Opts struct {
	Panel       *Panel      // Glass and init table (default: WCH172x320)
	Orientation Orientation // Initial scan direction

	// Optional control pins
	RST gpio.PinOut // Hardware reset
	CS  gpio.PinOut // Software chip-select; nil leaves framing to the SPI port
	BL  gpio.PinOut // Backlight, switched on after init

	// SPI bus
	Freq physic.Frequency // Clock (default: 40MHz)
	Mode spi.Mode         // Mode (default: Mode0)

	Clock       clockwork.Clock // Delays and deadlines (default: real clock)
	BusyTimeout time.Duration   // Longest wait for a busy engine (default: 2s)
	Tx          Engine          // Pixel transmit engine for DrawRegionFromSource
	FillBatch   int             // Pixels per write when filling (default: 256)
}

// DefaultOpts is used by NewSPI when opts is nil.
var DefaultOpts = Opts{
	Panel:       &WCH172x320,
	Freq:        40 * physic.MegaHertz,
	BusyTimeout: 2 * time.Second,
	FillBatch:   256,
}

// Dev is the device handle for the ST7789 display.
type Dev struct {
	// Communication
	c   spi.Conn
	dc  gpio.PinOut
	cs  gpio.PinOut
	rst gpio.PinOut
	bl  gpio.PinOut
	tx  Engine

	// Timing
	clk         clockwork.Clock
	busyTimeout time.Duration

	// Display geometry
	panel  Panel
	orient Orientation
	rect   image.Rectangle

	// Pixel buffers
	fill  pixel.Image[pixel.RGB565BE] // Solid colour batch
	next  *rgb565.Image               // Canvas for Draw
	frame *rgb565.Image               // Last frame sent by Draw or Write
	stale bool                        // Panel modified outside Draw

	// State
	inverted bool
	halted   bool
	err      error // First SetPixel failure, reported by Display
}

// NewSPI creates a new ST7789 device connected via SPI and initialises the
// panel.
//
// The dc (Data/Command) GPIO pin must be provided. opts can be nil to use
// DefaultOpts.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if dc == nil {
		return nil, errors.New("st7789: DC pin is required")
	}
	panel := opts.Panel
	if panel == nil {
		panel = DefaultOpts.Panel
	}
	if err := panel.Validate(); err != nil {
		return nil, err
	}
	if opts.Orientation > LandscapeFlipped {
		return nil, fmt.Errorf("st7789: invalid orientation %d", opts.Orientation)
	}
	freq := opts.Freq
	if freq == 0 {
		freq = DefaultOpts.Freq
	}
	batch := opts.FillBatch
	if batch <= 0 {
		batch = DefaultOpts.FillBatch
	}
	if batch > 0x7FFF {
		return nil, errors.New("st7789: fill batch must be at most 32767 pixels")
	}
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultOpts.BusyTimeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	c, err := p.Connect(freq, opts.Mode, 8)
	if err != nil {
		return nil, fmt.Errorf("st7789: failed to connect: %w", err)
	}

	d := &Dev{
		c:           c,
		dc:          dc,
		cs:          opts.CS,
		rst:         opts.RST,
		bl:          opts.BL,
		tx:          opts.Tx,
		clk:         clk,
		busyTimeout: timeout,
		panel:       *panel,
		orient:      opts.Orientation,
		rect:        opts.Orientation.bounds(panel),
		fill:        pixel.NewImage[pixel.RGB565BE](batch, 1),
		inverted:    panel.invertedByDefault(),
		stale:       true,
	}
	if d.tx == nil {
		d.tx = &connEngine{c: c}
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

// init resets the controller, replays the panel's init table, writes the
// scan direction and switches the backlight on.
func (d *Dev) init() error {
	if err := d.deselectChip(); err != nil {
		return err
	}
	if d.rst != nil {
		for _, s := range d.panel.Reset {
			if err := d.rst.Out(s.Level); err != nil {
				return fmt.Errorf("st7789: failed to drive RST %s: %w", s.Level, err)
			}
			d.clk.Sleep(s.Hold)
		}
	}

	for _, s := range d.panel.Init {
		if err := d.writeCommand(s.Cmd); err != nil {
			return err
		}
		for _, b := range s.Data {
			if err := d.writeData8(b); err != nil {
				return err
			}
		}
		if s.Delay > 0 {
			d.clk.Sleep(s.Delay)
		}
	}

	if err := d.writeMADCTL(d.orient); err != nil {
		return err
	}
	if d.bl != nil {
		if err := d.bl.Out(gpio.High); err != nil {
			return fmt.Errorf("st7789: failed to switch backlight on: %w", err)
		}
	}
	return nil
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the drawing area in the current orientation.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Panel returns the panel description in use.
func (d *Dev) Panel() Panel {
	return d.panel
}

// Write writes a raw big-endian RGB565 frame covering Bounds.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, ErrHalted
	}
	if len(pixels) != 2*d.rect.Dx()*d.rect.Dy() {
		return 0, errors.New("st7789: invalid buffer size")
	}
	if err := d.writeFullFrame(pixels); err != nil {
		return 0, err
	}
	if d.next != nil {
		copy(d.next.Pix, pixels)
		copy(d.frame.Pix, pixels)
		d.stale = false
	}
	return len(pixels), nil
}

// Draw draws an image onto the display.
//
// Only the bounding box of pixels that changed since the previous Draw is
// sent. After a drawing primitive touched the panel the whole of dst is
// sent once.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return ErrHalted
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	if srcImg, ok := src.(*rgb565.Image); ok && (d.next == nil || d.stale) {
		zeroPoint := image.Point{}
		if dst == d.rect && sp == zeroPoint && srcImg.Rect == d.rect {
			if _, err := d.Write(srcImg.Pix); err != nil {
				return err
			}
			if d.next == nil {
				d.allocFrame()
				copy(d.next.Pix, srcImg.Pix)
				copy(d.frame.Pix, srcImg.Pix)
				d.stale = false
			}
			return nil
		}
	}

	if d.next == nil {
		d.allocFrame()
	}

	draw.Draw(d.next, dst, src, sp, draw.Src)

	var r image.Rectangle
	if d.stale {
		r = dst
	} else {
		r = d.calculateDiff()
		if r.Empty() {
			return nil
		}
	}

	if err := d.setWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1); err != nil {
		return err
	}
	if err := d.writeData(d.extractRegion(r)); err != nil {
		return err
	}

	copy(d.frame.Pix, d.next.Pix)
	d.stale = false
	return nil
}

func (d *Dev) allocFrame() {
	d.next = rgb565.NewImage(d.rect)
	d.frame = rgb565.NewImage(d.rect)
}

// calculateDiff returns the smallest rectangle holding every pixel that
// differs between the canvas and the last frame sent.
func (d *Dev) calculateDiff() image.Rectangle {
	width := d.rect.Dx()
	height := d.rect.Dy()
	stride := d.next.Stride

	minRow, maxRow := height, -1
	minCol, maxCol := width, -1

	for y := 0; y < height; y++ {
		row := y * stride
		prev := d.frame.Pix[row : row+stride]
		cur := d.next.Pix[row : row+stride]
		if bytes.Equal(prev, cur) {
			continue
		}
		minRow = min(minRow, y)
		maxRow = max(maxRow, y)
		for x := 0; x < width; x++ {
			if prev[2*x] != cur[2*x] || prev[2*x+1] != cur[2*x+1] {
				minCol = min(minCol, x)
				maxCol = max(maxCol, x)
			}
		}
	}
	if maxRow < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minCol, minRow, maxCol+1, maxRow+1)
}

// extractRegion copies the pixels of r out of the canvas.
func (d *Dev) extractRegion(r image.Rectangle) []byte {
	rowBytes := 2 * r.Dx()
	out := make([]byte, 0, rowBytes*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := d.next.PixOffset(r.Min.X, y)
		out = append(out, d.next.Pix[i:i+rowBytes]...)
	}
	return out
}

// writeFullFrame writes the entire frame buffer to the display.
func (d *Dev) writeFullFrame(pixels []byte) error {
	if err := d.setWindow(0, 0, d.rect.Dx()-1, d.rect.Dy()-1); err != nil {
		return err
	}
	return d.writeData(pixels)
}

// Invert inverts the display colours relative to the panel's normal mode.
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return ErrHalted
	}
	cmd := byte(INVOFF)
	if invert != d.inverted {
		cmd = INVON
	}
	return d.writeCommand(cmd)
}

// SetBrightness dims the backlight. 0 switches it off and 255 fully on;
// values in between need a PWM capable BL pin.
func (d *Dev) SetBrightness(level uint8) error {
	if d.halted {
		return ErrHalted
	}
	if d.bl == nil {
		return errors.New("st7789: no backlight pin")
	}
	var err error
	switch level {
	case 0:
		err = d.bl.Out(gpio.Low)
	case 255:
		err = d.bl.Out(gpio.High)
	default:
		duty := gpio.Duty(int64(gpio.DutyMax) * int64(level) / 255)
		err = d.bl.PWM(duty, 0)
	}
	if err != nil {
		return fmt.Errorf("st7789: failed to set backlight: %w", err)
	}
	return nil
}

// SetScrollArea defines the vertical scrolling area as everything between a
// fixed top band of top lines and a fixed bottom band of bottom lines.
// Lines count along the native 320 line axis.
func (d *Dev) SetScrollArea(top, bottom int) error {
	if d.halted {
		return ErrHalted
	}
	if top < 0 || bottom < 0 || top+bottom > gramH {
		return ErrInvalidWindow
	}
	vsa := gramH - top - bottom
	return d.sendCommand(VSCRDEF,
		byte(top>>8), byte(top),
		byte(vsa>>8), byte(vsa),
		byte(bottom>>8), byte(bottom),
	)
}

// SetScroll sets the GRAM line shown at the top of the scrolling area.
func (d *Dev) SetScroll(line int) error {
	if d.halted {
		return ErrHalted
	}
	if line < 0 || line >= gramH {
		return ErrInvalidWindow
	}
	return d.sendCommand(VSCRSADD, byte(line>>8), byte(line))
}

// Sleep puts the controller into or out of sleep mode.
func (d *Dev) Sleep(sleep bool) error {
	if d.halted {
		return ErrHalted
	}
	if sleep {
		return d.writeCommand(SLPIN)
	}
	if err := d.writeCommand(SLPOUT); err != nil {
		return err
	}
	d.clk.Sleep(SleepOutDelay)
	return nil
}

// Halt turns the display and backlight off and puts the controller to sleep.
// After calling Halt every drawing call returns ErrHalted.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	d.halted = true
	werr := d.waitIdle(d.tx)
	if err := d.writeCommand(DISPOFF); err != nil {
		return err
	}
	if err := d.writeCommand(SLPIN); err != nil {
		return err
	}
	if d.bl != nil {
		if err := d.bl.Out(gpio.Low); err != nil {
			return fmt.Errorf("st7789: failed to switch backlight off: %w", err)
		}
	}
	return werr
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st7789.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

var (
	_ display.Drawer    = &Dev{}
	_ drivers.Displayer = &Dev{}
)
