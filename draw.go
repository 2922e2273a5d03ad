package st7789

import (
	"image/color"

	"periph.io/x/devices/v3/st7789/rgb565"
)

// Drawing primitives address the panel directly through small windows.
// Coordinates are logical pixels in the current orientation; anything
// outside Bounds is dropped without touching the bus.

// DrawPixel sets a single pixel. Pixels outside Bounds are ignored.
func (d *Dev) DrawPixel(x, y int, c rgb565.Color) error {
	if d.halted {
		return ErrHalted
	}
	if x < 0 || y < 0 || x >= d.rect.Max.X || y >= d.rect.Max.Y {
		return nil
	}
	d.stale = true
	if err := d.setWindow(x, y, x, y); err != nil {
		return err
	}
	return d.writeData16(uint16(c))
}

// DrawLine draws a line from (x0, y0) to (x1, y1) inclusive.
func (d *Dev) DrawLine(x0, y0, x1, y1 int, c rgb565.Color) error {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 >= x1 {
		sx = -1
	}
	if y0 >= y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if err := d.DrawPixel(x0, y0, c); err != nil {
			return err
		}
		if x0 == x1 && y0 == y1 {
			return nil
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawRect outlines the rectangle with corners (x0, y0) and (x1, y1).
func (d *Dev) DrawRect(x0, y0, x1, y1 int, c rgb565.Color) error {
	for _, l := range [4][4]int{
		{x0, y0, x1, y0},
		{x0, y1, x1, y1},
		{x0, y0, x0, y1},
		{x1, y0, x1, y1},
	} {
		if err := d.DrawLine(l[0], l[1], l[2], l[3], c); err != nil {
			return err
		}
	}
	return nil
}

// clip clamps the inclusive rectangle to Bounds. ok is false when nothing
// is left.
func (d *Dev) clip(x0, y0, x1, y1 int) (int, int, int, int, bool) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, d.rect.Max.X-1), min(y1, d.rect.Max.Y-1)
	return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
}

// FillRect fills the rectangle with inclusive corners (x0, y0) and (x1, y1)
// after clamping it to Bounds.
func (d *Dev) FillRect(x0, y0, x1, y1 int, c rgb565.Color) error {
	if d.halted {
		return ErrHalted
	}
	if x0 > x1 || y0 > y1 {
		return ErrInvalidWindow
	}
	x0, y0, x1, y1, ok := d.clip(x0, y0, x1, y1)
	if !ok {
		return nil
	}
	d.stale = true
	if err := d.setWindow(x0, y0, x1, y1); err != nil {
		return err
	}
	return d.writeSolid((x1-x0+1)*(y1-y0+1), c)
}

// writeSolid streams n pixels of colour c in batches.
func (d *Dev) writeSolid(n int, c rgb565.Color) error {
	d.fill.FillSolidColor(c.Pixel())
	batch := d.fill.Len()
	for n > 0 {
		k := min(n, batch)
		if err := d.writeData(d.fill.Rescale(k, 1).RawBuffer()); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// FillScreen paints the whole display.
func (d *Dev) FillScreen(c rgb565.Color) error {
	return d.FillRect(0, 0, d.rect.Max.X-1, d.rect.Max.Y-1, c)
}

// DrawCircle outlines a circle with the midpoint algorithm. Each step
// plots all eight reflections, so points on the axes and diagonals are
// written more than once.
func (d *Dev) DrawCircle(x0, y0, r int, c rgb565.Color) error {
	if r < 0 {
		return ErrInvalidWindow
	}
	x, y := 0, r
	dec := 3 - 2*r
	for x <= y {
		for _, p := range [8][2]int{
			{x0 + x, y0 + y},
			{x0 - x, y0 + y},
			{x0 + x, y0 - y},
			{x0 - x, y0 - y},
			{x0 + y, y0 + x},
			{x0 - y, y0 + x},
			{x0 + y, y0 - x},
			{x0 - y, y0 - x},
		} {
			if err := d.DrawPixel(p[0], p[1], c); err != nil {
				return err
			}
		}
		if dec < 0 {
			dec += 4*x + 6
		} else {
			dec += 4*(x-y) + 10
			y--
		}
		x++
	}
	return nil
}

// FillGradient fills the rectangle with rows blending from top to bottom.
func (d *Dev) FillGradient(x0, y0, x1, y1 int, top, bottom rgb565.Color) error {
	h := y1 - y0 + 1
	return d.FillFunc(x0, y0, x1, y1, func(_, y int) rgb565.Color {
		return rgb565.Interpolate(top, bottom, float32(y-y0)/float32(h))
	})
}

// FillFunc fills the rectangle with f(x, y) for every pixel, streaming the
// result through a single window.
func (d *Dev) FillFunc(x0, y0, x1, y1 int, f func(x, y int) rgb565.Color) error {
	if d.halted {
		return ErrHalted
	}
	if x0 > x1 || y0 > y1 {
		return ErrInvalidWindow
	}
	x0, y0, x1, y1, ok := d.clip(x0, y0, x1, y1)
	if !ok {
		return nil
	}
	d.stale = true
	if err := d.setWindow(x0, y0, x1, y1); err != nil {
		return err
	}
	w := x1 - x0 + 1
	row := make([]byte, 2*w)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			i := 2 * (x - x0)
			row[i], row[i+1] = f(x, y).Bytes()
		}
		if err := d.writeData(row); err != nil {
			return err
		}
	}
	return nil
}

// DrawBitmap draws a w×h bitmap with its top-left corner at (x, y).
// Pixels equal to 0 are transparent.
func (d *Dev) DrawBitmap(x, y, w, h int, bitmap []rgb565.Color) error {
	return d.DrawBitmapScaled(x, y, w, h, 1, bitmap)
}

// DrawBitmapScaled draws a bitmap enlarged by an integer factor. Each opaque
// source pixel becomes a scale×scale block.
func (d *Dev) DrawBitmapScaled(x, y, w, h, scale int, bitmap []rgb565.Color) error {
	if w < 0 || h < 0 || scale <= 0 || len(bitmap) < w*h {
		return ErrInvalidWindow
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			c := bitmap[j*w+i]
			if c == 0 {
				continue
			}
			px, py := x+i*scale, y+j*scale
			var err error
			if scale == 1 {
				err = d.DrawPixel(px, py, c)
			} else {
				err = d.FillRect(px, py, px+scale-1, py+scale-1, c)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Size implements drivers.Displayer.
func (d *Dev) Size() (x, y int16) {
	return int16(d.rect.Dx()), int16(d.rect.Dy())
}

// SetPixel implements drivers.Displayer. The first error is kept and
// returned by Display.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	err := d.DrawPixel(int(x), int(y), rgb565.New(c.R, c.G, c.B))
	if err != nil && d.err == nil {
		d.err = err
	}
}

// Display implements drivers.Displayer. Pixels are written immediately, so
// it only reports a failure from an earlier SetPixel.
func (d *Dev) Display() error {
	err := d.err
	d.err = nil
	return err
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
