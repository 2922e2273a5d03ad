package scene

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/devices/v3/st7789/rgb565"
	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Canvas is the drawing surface the scenes need.
type Canvas interface {
	drivers.Displayer
	Bounds() image.Rectangle
	DrawPixel(x, y int, c rgb565.Color) error
	DrawLine(x0, y0, x1, y1 int, c rgb565.Color) error
	DrawCircle(x0, y0, r int, c rgb565.Color) error
	FillRect(x0, y0, x1, y1 int, c rgb565.Color) error
	FillScreen(c rgb565.Color) error
	FillGradient(x0, y0, x1, y1 int, top, bottom rgb565.Color) error
	FillFunc(x0, y0, x1, y1 int, f func(x, y int) rgb565.Color) error
	DrawBitmapScaled(x, y, w, h, scale int, bitmap []rgb565.Color) error
}

// Func draws a still picture.
type Func func(c Canvas) error

// Stills lists the static scenes by name.
var Stills = map[string]Func{
	"scenery":    Scenery,
	"gradient":   Gradient,
	"solid":      SolidColor,
	"solidheart": SolidHeart,
}

// Names returns the sorted names of all still scenes.
func Names() []string {
	names := make([]string, 0, len(Stills))
	for n := range Stills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Animation is a sequence of frames.
type Animation interface {
	// Frames returns the number of frames, or 0 for an endless animation.
	Frames() int
	// Frame draws frame n and returns how long it stays on screen.
	Frame(c Canvas, n int) (time.Duration, error)
}

// Play draws the frames of a in order, sleeping on clk between them, until
// the animation ends or ctx is done.
func Play(ctx context.Context, c Canvas, clk clockwork.Clock, a Animation) error {
	for n := 0; a.Frames() <= 0 || n < a.Frames(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := a.Frame(c, n)
		if err != nil {
			return fmt.Errorf("scene: frame %d: %w", n, err)
		}
		if d > 0 {
			clk.Sleep(d)
		}
	}
	return nil
}

// Palette of the landscape.
const (
	SkyBlue    rgb565.Color = 0x067D
	GrassGreen rgb565.Color = 0x07E0
	SunYellow  rgb565.Color = 0xFFE0
	TrunkBrown rgb565.Color = 0xBAAB
	LeafGreen  rgb565.Color = 0x3666
)

// Scenery draws a landscape with sky, sun, a tree and a cloud, laid out for
// a 172×320 portrait panel.
func Scenery(c Canvas) error {
	steps := []func() error{
		func() error { return c.FillRect(0, 0, 171, 159, SkyBlue) },
		func() error { return c.FillRect(0, 160, 171, 319, GrassGreen) },
		func() error { return c.DrawCircle(140, 40, 20, SunYellow) },
		func() error {
			for i := 0; i < 12; i++ {
				a := float64(i*30) * math.Pi / 180
				sin, cos := math.Sincos(a)
				x0, y0 := 140+int(25*cos), 40+int(25*sin)
				x1, y1 := 140+int(35*cos), 40+int(35*sin)
				if err := c.DrawLine(x0, y0, x1, y1, SunYellow); err != nil {
					return err
				}
			}
			return nil
		},
		func() error { return c.FillRect(80, 200, 84, 250, TrunkBrown) },
		func() error {
			for r := 25; r > 0; r -= 2 {
				if err := c.DrawCircle(82, 200, r, LeafGreen); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			for _, p := range [][2]int{{50, 60}, {70, 60}, {60, 50}, {60, 70}} {
				if err := c.DrawCircle(p[0], p[1], 15, rgb565.White); err != nil {
					return err
				}
			}
			return nil
		},
		func() error { return Label(c, 20, 290, "Scenery", rgb565.White) },
	}
	for _, s := range steps {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}

// Label writes s with its baseline at (x, y) using a small proportional font.
func Label(c Canvas, x, y int, s string, col rgb565.Color) error {
	tinyfont.WriteLine(c, &proggy.TinySZ8pt7b, int16(x), int16(y), s, col.RGBA8())
	return c.Display()
}

// LabelWidth returns the width in pixels of s as drawn by Label.
func LabelWidth(s string) int {
	_, w := tinyfont.LineWidth(&proggy.TinySZ8pt7b, s)
	return int(w)
}

// Gradient ends.
const (
	GradientTop    rgb565.Color = 0x867F
	GradientBottom rgb565.Color = 0xFC1F
)

// Gradient fills the screen blending from blue at the top to pink at the
// bottom.
func Gradient(c Canvas) error {
	b := c.Bounds()
	return c.FillGradient(b.Min.X, b.Min.Y, b.Max.X-1, b.Max.Y-1, GradientTop, GradientBottom)
}

// SolidColor fills the screen with red.
func SolidColor(c Canvas) error {
	return c.FillScreen(rgb565.Red)
}

// Solid heart colours.
const (
	HeartNavy  rgb565.Color = 0x2128
	HeartSlate rgb565.Color = 0x5D3C
	HeartGold  rgb565.Color = 0xFD80
)

// InHeart reports whether (x, y), in units of the heart size with y pointing
// up, lies inside the curve (x²+y²-1)³ - x²y³ = 0.
func InHeart(x, y float64) bool {
	a := x*x + y*y - 1
	return a*a*a-x*x*y*y*y < 0
}

// SolidHeart draws a filled gold heart in the centre of the screen over a
// vertical gradient, shading every pixel in a single pass.
func SolidHeart(c Canvas) error {
	b := c.Bounds()
	cx, cy := (b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2
	size := float64(min(b.Dx(), b.Dy())) / 4
	h := float32(b.Dy() - 1)
	return c.FillFunc(b.Min.X, b.Min.Y, b.Max.X-1, b.Max.Y-1, func(x, y int) rgb565.Color {
		if InHeart(float64(x-cx)/size, float64(cy-y)/size) {
			return HeartGold
		}
		return rgb565.Interpolate(HeartNavy, HeartSlate, float32(y-b.Min.Y)/h)
	})
}
