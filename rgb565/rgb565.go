package rgb565

import (
	"image"
	"image/color"

	"tinygo.org/x/drivers/pixel"
)

// Color is a 16-bit RGB565 colour.
type Color uint16

// Common colours.
const (
	Black   Color = 0x0000
	White   Color = 0xFFFF
	Red     Color = 0xF800
	Green   Color = 0x07E0
	Blue    Color = 0x001F
	Yellow  Color = 0xFFE0
	Cyan    Color = 0x07FF
	Magenta Color = 0xF81F
)

// New packs 8-bit channels into a Color, dropping the low bits.
func New(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// Channels returns the raw 5-bit red, 6-bit green and 5-bit blue fields.
func (c Color) Channels() (r, g, b uint8) {
	return uint8(c>>11) & 0x1F, uint8(c>>5) & 0x3F, uint8(c) & 0x1F
}

// RGBA8 expands the colour to 8 bits per channel.
// The low bits are filled from the high bits so 0x1F maps to 0xFF.
func (c Color) RGBA8() color.RGBA {
	r, g, b := c.Channels()
	return color.RGBA{
		R: r<<3 | r>>2,
		G: g<<2 | g>>4,
		B: b<<3 | b>>2,
		A: 0xFF,
	}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	c8 := c.RGBA8()
	return uint32(c8.R) * 0x101, uint32(c8.G) * 0x101, uint32(c8.B) * 0x101, 0xFFFF
}

// Pixel returns the colour in the wire format of tinygo's pixel package.
func (c Color) Pixel() pixel.RGB565BE {
	c8 := c.RGBA8()
	return pixel.NewRGB565BE(c8.R, c8.G, c8.B)
}

// Bytes returns the colour as it is clocked out to the panel, high byte first.
func (c Color) Bytes() (hi, lo byte) {
	return byte(c >> 8), byte(c)
}

// Scale dims the colour by brightness/255 per channel.
// brightness is clamped to [0, 255].
func (c Color) Scale(brightness int) Color {
	if brightness <= 0 {
		return Black
	}
	if brightness >= 255 {
		return c
	}
	r, g, b := c.Channels()
	r = uint8(int(r) * brightness / 255)
	g = uint8(int(g) * brightness / 255)
	b = uint8(int(b) * brightness / 255)
	return Color(uint16(r)<<11 | uint16(g)<<5 | uint16(b))
}

// Interpolate returns the colour at position t in [0, 1] on the straight line
// from a to b. Each channel is interpolated in its native bit depth and
// truncated.
func Interpolate(a, b Color, t float32) Color {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	r1, g1, b1 := a.Channels()
	r2, g2, b2 := b.Channels()
	r := lerp(r1, r2, t)
	g := lerp(g1, g2, t)
	bl := lerp(b1, b2, t)
	return Color(uint16(r)<<11 | uint16(g)<<5 | uint16(bl))
}

func lerp(a, b uint8, t float32) uint8 {
	return uint8(float32(a) + (float32(b)-float32(a))*t)
}

func toRGB565(c color.Color) color.Color {
	if v, ok := c.(Color); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return New(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to Color.
var Model = color.ModelFunc(toRGB565)

// Image is an RGB565 image whose pixels are stored big-endian, 2 bytes per
// pixel, in the order the panel expects them.
type Image struct {
	Pix    []byte          // Pixel data (2 bytes per pixel, high byte first)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewImage creates a new Image with the specified bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the colour of the pixel at (x, y), or Black outside the
// bounds.
func (p *Image) RGB565At(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Black
	}
	i := p.PixOffset(x, y)
	return Color(uint16(p.Pix[i])<<8 | uint16(p.Pix[i+1]))
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, Model.Convert(c).(Color))
}

// SetRGB565 sets the pixel at (x, y) without colour conversion.
func (p *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i], p.Pix[i+1] = c.Bytes()
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Fill sets every pixel of the image to c.
func (p *Image) Fill(c Color) {
	hi, lo := c.Bytes()
	for i := 0; i+1 < len(p.Pix); i += 2 {
		p.Pix[i] = hi
		p.Pix[i+1] = lo
	}
}
