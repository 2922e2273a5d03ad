package st7789

import (
	"fmt"
	"image"
)

// GRAM size of the controller.
const (
	gramW = 240
	gramH = 320
)

// Orientation selects the GRAM scan direction written to MADCTL.
type Orientation uint8

const (
	Portrait Orientation = iota
	Landscape
	PortraitFlipped
	LandscapeFlipped
)

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case Landscape:
		return "landscape"
	case PortraitFlipped:
		return "portrait-flipped"
	case LandscapeFlipped:
		return "landscape-flipped"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

// ParseOrientation is the inverse of Orientation.String.
func ParseOrientation(s string) (Orientation, error) {
	for o := Portrait; o <= LandscapeFlipped; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("st7789: unknown orientation %q", s)
}

// swapped reports whether rows and columns are exchanged.
func (o Orientation) swapped() bool {
	return o == Landscape || o == LandscapeFlipped
}

func (o Orientation) madctl() byte {
	switch o {
	case Landscape:
		return MADCTL_MX | MADCTL_MV
	case PortraitFlipped:
		return MADCTL_MY | MADCTL_MX
	case LandscapeFlipped:
		return MADCTL_MY | MADCTL_MV
	}
	return 0
}

// bounds returns the logical drawing area of p in orientation o.
func (o Orientation) bounds(p *Panel) image.Rectangle {
	if o.swapped() {
		return image.Rect(0, 0, p.H, p.W)
	}
	return image.Rect(0, 0, p.W, p.H)
}

// offset returns the GRAM offset to add to logical x and y. The panel's
// column offset stays on the native column axis, which is the row address
// once MV is set.
func (d *Dev) offset() (dx, dy int) {
	if d.orient.swapped() {
		return d.panel.RowOffset, d.panel.ColOffset
	}
	return d.panel.ColOffset, d.panel.RowOffset
}

// setWindow arms the inclusive rectangle (x0,y0)-(x1,y1) for the next RAMWR
// stream. It sends CASET, RASET and RAMWR in that order and nothing else.
// Range is not checked; callers clamp.
func (d *Dev) setWindow(x0, y0, x1, y1 int) error {
	if x0 > x1 || y0 > y1 {
		return ErrInvalidWindow
	}
	dx, dy := d.offset()
	x0, x1 = x0+dx, x1+dx
	y0, y1 = y0+dy, y1+dy
	if err := d.sendCommand(CASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.sendCommand(RASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	return d.writeCommand(RAMWR)
}

// SetWindow arms r for pixel data sent with WritePixels. r must lie within
// Bounds.
func (d *Dev) SetWindow(r image.Rectangle) error {
	if d.halted {
		return ErrHalted
	}
	if r.Empty() {
		return ErrInvalidWindow
	}
	if !r.In(d.rect) {
		return ErrOutOfBounds
	}
	return d.setWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1)
}

// WritePixels streams big-endian RGB565 pixels into the window armed by
// SetWindow.
func (d *Dev) WritePixels(p []byte) error {
	if d.halted {
		return ErrHalted
	}
	if len(p)%2 != 0 {
		return fmt.Errorf("st7789: %d bytes is not a whole number of pixels", len(p))
	}
	d.stale = true
	return d.writeData(p)
}

// SetOrientation changes the scan direction. Bounds follows the change.
func (d *Dev) SetOrientation(o Orientation) error {
	if d.halted {
		return ErrHalted
	}
	if o > LandscapeFlipped {
		return fmt.Errorf("st7789: invalid orientation %d", o)
	}
	if err := d.writeMADCTL(o); err != nil {
		return err
	}
	d.orient = o
	d.rect = o.bounds(&d.panel)
	d.next, d.frame = nil, nil
	d.stale = true
	return nil
}

func (d *Dev) writeMADCTL(o Orientation) error {
	v := o.madctl()
	if d.panel.BGR {
		v |= MADCTL_BGR
	}
	return d.sendCommand(MADCTL, v)
}

// Orientation returns the current scan direction.
func (d *Dev) Orientation() Orientation {
	return d.orient
}
