package scene

import (
	"image"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"periph.io/x/devices/v3/st7789/rgb565"
)

// Heart is a red heart outline growing from size 30 to 60 in steps of 2.
type Heart struct {
	Color rgb565.Color // Outline colour (default: red)
}

func (h *Heart) Frames() int {
	return 16
}

func (h *Heart) Size(n int) int {
	return 30 + 2*n
}

// Frame clears the screen and traces the parametric heart curve at the
// size of frame n.
func (h *Heart) Frame(c Canvas, n int) (time.Duration, error) {
	col := h.Color
	if col == 0 {
		col = rgb565.Red
	}
	if err := c.FillScreen(rgb565.Black); err != nil {
		return 0, err
	}
	b := c.Bounds()
	cx, cy := (b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2
	size := float64(h.Size(n))
	for i := 0; i <= 314; i++ {
		t := float64(i) * 0.02
		s := math.Sin(t)
		x := 16 * s * s * s
		y := 13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t)
		px := cx + int(x*size/16)
		py := cy - int(y*size/16)
		if err := c.DrawPixel(px, py, col); err != nil {
			return 0, err
		}
	}
	return time.Millisecond, nil
}

// Star is one twinkling star.
type Star struct {
	X, Y       int
	Size       int // 1 draws a dot, larger sizes a cross of that arm length
	Color      rgb565.Color
	Brightness int // 50 to 255
	Delta      int // Brightness change per frame
}

// Starfield draws twinkling stars over a dark blue gradient at 10 frames
// per second. It never ends on its own.
type Starfield struct {
	Stars []Star
}

// NewStarfield scatters n white stars over b using rng.
func NewStarfield(n int, b image.Rectangle, rng *rand.Rand) *Starfield {
	s := &Starfield{Stars: make([]Star, n)}
	for i := range s.Stars {
		s.Stars[i] = Star{
			X:          b.Min.X + rng.IntN(b.Dx()),
			Y:          b.Min.Y + rng.IntN(b.Dy()),
			Size:       1 + rng.IntN(3),
			Color:      rgb565.White,
			Brightness: rng.IntN(256),
			Delta:      1 + rng.IntN(5),
		}
	}
	return s
}

func (s *Starfield) Frames() int {
	return 0
}

// Background is the colour of row y of a screen h rows high.
func Background(y, h int) rgb565.Color {
	return 0x000F + rgb565.Color(y*0x10/h)
}

// Frame draws the background and the stars, then advances the twinkle.
func (s *Starfield) Frame(c Canvas, n int) (time.Duration, error) {
	b := c.Bounds()
	err := c.FillFunc(b.Min.X, b.Min.Y, b.Max.X-1, b.Max.Y-1, func(_, y int) rgb565.Color {
		return Background(y-b.Min.Y, b.Dy())
	})
	if err != nil {
		return 0, err
	}
	for i := range s.Stars {
		if err := s.Stars[i].draw(c); err != nil {
			return 0, err
		}
	}
	s.Update()
	return 100 * time.Millisecond, nil
}

func (st *Star) draw(c Canvas) error {
	col := st.Color.Scale(st.Brightness)
	if st.Size <= 1 {
		return c.DrawPixel(st.X, st.Y, col)
	}
	for i := -st.Size; i <= st.Size; i++ {
		if err := c.DrawPixel(st.X+i, st.Y, col); err != nil {
			return err
		}
		if err := c.DrawPixel(st.X, st.Y+i, col); err != nil {
			return err
		}
	}
	return nil
}

// Update moves every star's brightness one step, bouncing between 50 and
// 255.
func (s *Starfield) Update() {
	for i := range s.Stars {
		st := &s.Stars[i]
		st.Brightness += st.Delta
		switch {
		case st.Brightness <= 50:
			st.Brightness = 50
			st.Delta = -st.Delta
		case st.Brightness >= 255:
			st.Brightness = 255
			st.Delta = -st.Delta
		}
	}
}

// carArt is the side view of a sports car, one rune per pixel.
var carArt = []string{
	"................................",
	"................................",
	"...........WWWWWWWWWW...........",
	".........WWBBBBWWBBBBWW.........",
	"........WWBBBBBWWBBBBBWW........",
	"...WWWWWWWWWWWWWWWWWWWWWWWWWW...",
	"..WWWWWWWWWWWWWWWWWWWWWWWWWWWWY.",
	".RWWWWWWWWWWWWWWWWWWWWWWWWWWWWW.",
	".RWWWWWWWWWWWWWWWWWWWWWWWWWWWWW.",
	"..WWWWKKKKWWWWWWWWWWWWKKKKWWWW..",
	".....KKKKKK..........KKKKKK.....",
	"......KKKK............KKKK......",
}

var carPalette = map[rune]rgb565.Color{
	'.': 0,
	'W': rgb565.White,
	'B': 0x3A7F,
	'K': 0x4208,
	'R': rgb565.Red,
	'Y': rgb565.Yellow,
}

// Bitmap converts rune art into pixels using palette. All rows must have
// the same length.
func Bitmap(art []string, palette map[rune]rgb565.Color) (w, h int, pix []rgb565.Color) {
	h = len(art)
	if h > 0 {
		w = len(art[0])
	}
	pix = make([]rgb565.Color, 0, w*h)
	for _, row := range art {
		if len(row) != w {
			panic("scene: ragged bitmap row " + strings.TrimSpace(row))
		}
		for _, r := range row {
			pix = append(pix, palette[r])
		}
	}
	return w, h, pix
}

// SportsCar draws a scaled car centred on a black screen and blinks its
// tail lights Blinks times.
type SportsCar struct {
	Scale  int // Pixel size (default: 5)
	Blinks int // Tail light flashes (default: 3)

	w, h int
	pix  []rgb565.Color
}

func (s *SportsCar) scale() int {
	if s.Scale <= 0 {
		return 5
	}
	return s.Scale
}

func (s *SportsCar) Frames() int {
	if s.Blinks <= 0 {
		return 1 + 2*3
	}
	return 1 + 2*s.Blinks
}

// origin returns the top-left corner of the scaled car.
func (s *SportsCar) origin(b image.Rectangle) (int, int) {
	k := s.scale()
	return b.Min.X + (b.Dx()-s.w*k)/2, b.Min.Y + (b.Dy()-s.h*k)/2
}

// Frame 0 draws the car; odd frames switch the tail light on and even ones
// off again.
func (s *SportsCar) Frame(c Canvas, n int) (time.Duration, error) {
	if s.pix == nil {
		s.w, s.h, s.pix = Bitmap(carArt, carPalette)
	}
	k := s.scale()
	x, y := s.origin(c.Bounds())
	if n == 0 {
		if err := c.FillScreen(rgb565.Black); err != nil {
			return 0, err
		}
		return 0, c.DrawBitmapScaled(x, y, s.w, s.h, k, s.pix)
	}
	col, d := rgb565.Red, time.Second
	if n%2 == 0 {
		col, d = rgb565.Color(0x7800), 500*time.Millisecond
	}
	// Tail light occupies column 1, rows 7 and 8 of the art.
	return d, c.FillRect(x+k, y+7*k, x+2*k-1, y+9*k-1, col)
}
