package scene

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/devices/v3/st7789"
	"periph.io/x/devices/v3/st7789/internal/panelsim"
	"periph.io/x/devices/v3/st7789/rgb565"
)

type steppingClock struct {
	clockwork.FakeClock
	slept time.Duration
}

func (c *steppingClock) Sleep(d time.Duration) {
	c.slept += d
	c.Advance(d)
}

func newPanel(t *testing.T) (*st7789.Dev, *panelsim.Panel, *steppingClock) {
	t.Helper()
	dc := &gpiotest.Pin{N: "DC"}
	sim := panelsim.New(dc, 172, 320, 0, 0)
	clk := &steppingClock{FakeClock: clockwork.NewFakeClock()}
	dev, err := st7789.NewSPI(sim, dc, &st7789.Opts{Clock: clk})
	if err != nil {
		t.Fatalf("NewSPI() error = %v", err)
	}
	clk.slept = 0
	return dev, sim, clk
}

func TestStills(t *testing.T) {
	tests := []struct {
		name   string
		points map[image.Point]rgb565.Color
	}{
		{"scenery", map[image.Point]rgb565.Color{
			{0, 0}:     SkyBlue,
			{0, 319}:   GrassGreen,
			{82, 240}:  TrunkBrown,
			{160, 40}:  SunYellow,
			{171, 200}: GrassGreen,
		}},
		{"gradient", map[image.Point]rgb565.Color{
			{0, 0}:   GradientTop,
			{171, 0}: GradientTop,
		}},
		{"solid", map[image.Point]rgb565.Color{
			{0, 0}:     rgb565.Red,
			{171, 319}: rgb565.Red,
		}},
		{"solidheart", map[image.Point]rgb565.Color{
			{86, 160}: HeartGold,
			{0, 0}:    HeartNavy,
			{171, 0}:  HeartNavy,
		}},
	}
	if len(tests) != len(Stills) {
		t.Fatalf("%d stills, %d tested", len(Stills), len(tests))
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, sim, _ := newPanel(t)
			if err := Stills[tt.name](dev); err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			for p, want := range tt.points {
				if got := sim.At(p.X, p.Y); got != want {
					t.Errorf("pixel %v = %#04x, want %#04x", p, got, want)
				}
			}
		})
	}
}

func TestNames(t *testing.T) {
	got := Names()
	want := []string{"gradient", "scenery", "solid", "solidheart"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names() = %v, want %v", got, want)
		}
	}
}

func TestLabel(t *testing.T) {
	dev, sim, _ := newPanel(t)
	if err := Label(dev, 20, 290, "Scenery", rgb565.White); err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	n := 0
	for y := 278; y < 294; y++ {
		for x := 20; x < 20+LabelWidth("Scenery"); x++ {
			if sim.At(x, y) == rgb565.White {
				n++
			}
		}
	}
	if n == 0 {
		t.Error("label left no pixels")
	}
	if LabelWidth("Scenery") <= LabelWidth("S") {
		t.Error("LabelWidth does not grow with the text")
	}
}

func TestInHeart(t *testing.T) {
	tests := []struct {
		x, y float64
		want bool
	}{
		{0, 0, true},
		{0, 0.99, true},
		{0, 1.01, false},
		{0, -0.99, true},
		{0, -1.01, false},
		{0.5, 0.8, true},
		{2, 2, false},
		{-1.2, 0.5, false},
	}
	for _, tt := range tests {
		if got := InHeart(tt.x, tt.y); got != tt.want {
			t.Errorf("InHeart(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestPlay(t *testing.T) {
	tests := []struct {
		name  string
		a     Animation
		slept time.Duration
	}{
		{"heart", &Heart{}, 16 * time.Millisecond},
		{"sports car", &SportsCar{}, 3*time.Second + 3*500*time.Millisecond},
		{"one blink", &SportsCar{Blinks: 1}, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _, clk := newPanel(t)
			if err := Play(context.Background(), dev, clk, tt.a); err != nil {
				t.Fatalf("Play() error = %v", err)
			}
			if clk.slept != tt.slept {
				t.Errorf("slept %v, want %v", clk.slept, tt.slept)
			}
		})
	}
}

func TestPlayCancelled(t *testing.T) {
	dev, sim, clk := newPanel(t)
	sim.ResetOps()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sf := NewStarfield(8, dev.Bounds(), rand.New(rand.NewPCG(1, 2)))
	if err := Play(ctx, dev, clk, sf); !errors.Is(err, context.Canceled) {
		t.Errorf("Play() error = %v, want context.Canceled", err)
	}
	if n := len(sim.Ops()); n != 0 {
		t.Errorf("cancelled Play sent %d transactions", n)
	}
}

func TestHeartFrame(t *testing.T) {
	dev, sim, _ := newPanel(t)
	h := &Heart{}
	if h.Size(0) != 30 || h.Size(h.Frames()-1) != 60 {
		t.Errorf("sizes run %d to %d, want 30 to 60", h.Size(0), h.Size(h.Frames()-1))
	}
	d, err := h.Frame(dev, 0)
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if d != time.Millisecond {
		t.Errorf("Frame() delay = %v, want 1ms", d)
	}
	// Top of the curve at t=0: y = 5 units, 9 pixels above the centre.
	if got := sim.At(86, 151); got != rgb565.Red {
		t.Errorf("top of heart = %#04x, want red", got)
	}
	if got := sim.At(86, 160); got != rgb565.Black {
		t.Errorf("centre = %#04x, want black", got)
	}
}

func TestStarfield(t *testing.T) {
	dev, sim, _ := newPanel(t)
	sf := &Starfield{Stars: []Star{
		{X: 10, Y: 10, Size: 1, Color: rgb565.White, Brightness: 255, Delta: -5},
		{X: 100, Y: 200, Size: 2, Color: rgb565.White, Brightness: 52, Delta: -4},
	}}
	if sf.Frames() != 0 {
		t.Errorf("Frames() = %d, want endless", sf.Frames())
	}
	d, err := sf.Frame(dev, 0)
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if d != 100*time.Millisecond {
		t.Errorf("Frame() delay = %v, want 100ms", d)
	}

	if got := sim.At(0, 0); got != Background(0, 320) || got != 0x000F {
		t.Errorf("background top = %#04x, want 0x000f", got)
	}
	if got := sim.At(0, 319); got != 0x001E {
		t.Errorf("background bottom = %#04x, want 0x001e", got)
	}
	if got := sim.At(10, 10); got != rgb565.White {
		t.Errorf("star = %#04x, want white", got)
	}
	dim := rgb565.White.Scale(52)
	for _, p := range [][2]int{{98, 200}, {102, 200}, {100, 198}, {100, 202}} {
		if got := sim.At(p[0], p[1]); got != dim {
			t.Errorf("cross arm %v = %#04x, want %#04x", p, got, dim)
		}
	}

	if sf.Stars[0].Brightness != 250 || sf.Stars[0].Delta != -5 {
		t.Errorf("star 0 = %+v after update", sf.Stars[0])
	}
	if sf.Stars[1].Brightness != 50 || sf.Stars[1].Delta != 4 {
		t.Errorf("star 1 = %+v, want bounce at 50", sf.Stars[1])
	}
}

func TestStarfieldUpdateBounds(t *testing.T) {
	sf := NewStarfield(32, image.Rect(0, 0, 172, 320), rand.New(rand.NewPCG(7, 7)))
	for _, s := range sf.Stars {
		if s.X < 0 || s.X >= 172 || s.Y < 0 || s.Y >= 320 {
			t.Errorf("star outside the screen: %+v", s)
		}
		if s.Size < 1 || s.Size > 3 || s.Delta < 1 || s.Delta > 5 {
			t.Errorf("star parameters out of range: %+v", s)
		}
	}
	for i := 0; i < 500; i++ {
		sf.Update()
		for _, s := range sf.Stars {
			if s.Brightness < 50 || s.Brightness > 255 {
				t.Fatalf("brightness %d escaped [50, 255]", s.Brightness)
			}
		}
	}
}

func TestSportsCar(t *testing.T) {
	dev, sim, _ := newPanel(t)
	car := &SportsCar{}
	if car.Frames() != 7 {
		t.Errorf("Frames() = %d, want 7", car.Frames())
	}
	if _, err := car.Frame(dev, 0); err != nil {
		t.Fatalf("Frame(0) error = %v", err)
	}
	// 32×12 art at scale 5, centred: origin (6, 130).
	if got := sim.At(6+2*5, 130+6*5); got != rgb565.White {
		t.Errorf("body = %#04x, want white", got)
	}
	if got := sim.At(0, 0); got != rgb565.Black {
		t.Errorf("background = %#04x, want black", got)
	}

	tail := image.Pt(6+5+2, 130+7*5+2)
	for n, want := range []rgb565.Color{1: rgb565.Red, 2: 0x7800, 3: rgb565.Red} {
		if n == 0 {
			continue
		}
		if _, err := car.Frame(dev, n); err != nil {
			t.Fatalf("Frame(%d) error = %v", n, err)
		}
		if got := sim.At(tail.X, tail.Y); got != want {
			t.Errorf("frame %d tail light = %#04x, want %#04x", n, got, want)
		}
	}
}

func TestBitmapRagged(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Bitmap() accepted ragged rows")
		}
	}()
	Bitmap([]string{"WW", "W"}, carPalette)
}
