package st7789

import (
	"errors"
	"image/color"
	"testing"

	"periph.io/x/devices/v3/st7789/internal/panelsim"
	"periph.io/x/devices/v3/st7789/rgb565"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// lit returns the pixels of the emulated panel that are not black.
func lit(sim *panelsim.Panel, w, h int) map[[2]int]rgb565.Color {
	m := map[[2]int]rgb565.Color{}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c := sim.At(x, y); c != rgb565.Black {
				m[[2]int{x, y}] = c
			}
		}
	}
	return m
}

func TestDrawPixel(t *testing.T) {
	tests := []struct {
		name string
		x, y int
		ops  int
	}{
		{"origin", 0, 0, 6},
		{"bottom right", 171, 319, 6},
		{"left of screen", -1, 5, 0},
		{"below screen", 5, 320, 0},
		{"right of screen", 172, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, &WCH172x320, nil)
			if err := r.dev.DrawPixel(tt.x, tt.y, rgb565.Red); err != nil {
				t.Fatalf("DrawPixel() error = %v", err)
			}
			if n := len(r.sim.Ops()); n != tt.ops {
				t.Fatalf("DrawPixel() sent %d transactions, want %d", n, tt.ops)
			}
			if tt.ops > 0 {
				want := append(windowOps(tt.x, tt.x, tt.y, tt.y), dataOp(0xF8, 0x00))
				compareOps(t, r.sim.Ops(), want)
				if got := r.sim.At(tt.x, tt.y); got != rgb565.Red {
					t.Errorf("pixel = %#04x, want red", got)
				}
			}
		})
	}
}

func TestDrawLine(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		want           [][2]int
	}{
		{"horizontal", 2, 3, 5, 3, [][2]int{{2, 3}, {3, 3}, {4, 3}, {5, 3}}},
		{"vertical reversed", 7, 4, 7, 1, [][2]int{{7, 1}, {7, 2}, {7, 3}, {7, 4}}},
		{"diagonal", 0, 0, 3, 3, [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
		{"single point", 9, 9, 9, 9, [][2]int{{9, 9}}},
		{"shallow", 0, 0, 4, 2, [][2]int{{0, 0}, {1, 1}, {2, 1}, {3, 2}, {4, 2}}},
		{"clipped", -2, 0, 1, 0, [][2]int{{0, 0}, {1, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, &WCH172x320, nil)
			if err := r.dev.DrawLine(tt.x0, tt.y0, tt.x1, tt.y1, rgb565.Green); err != nil {
				t.Fatalf("DrawLine() error = %v", err)
			}
			got := lit(r.sim, 16, 16)
			if len(got) != len(tt.want) {
				t.Errorf("lit %d pixels, want %d: %v", len(got), len(tt.want), got)
			}
			for _, p := range tt.want {
				if got[p] != rgb565.Green {
					t.Errorf("pixel %v not drawn", p)
				}
			}
		})
	}
}

func TestDrawRect(t *testing.T) {
	r := newRig(t, &WCH172x320, nil)
	if err := r.dev.DrawRect(1, 1, 4, 3, rgb565.Blue); err != nil {
		t.Fatalf("DrawRect() error = %v", err)
	}
	got := lit(r.sim, 8, 8)
	// 4x3 outline: 2*4 + 2*1 pixels.
	if len(got) != 10 {
		t.Errorf("lit %d pixels, want 10", len(got))
	}
	for _, p := range [][2]int{{1, 1}, {4, 1}, {1, 3}, {4, 3}, {1, 2}, {4, 2}} {
		if got[p] != rgb565.Blue {
			t.Errorf("pixel %v not drawn", p)
		}
	}
	if _, ok := got[[2]int{2, 2}]; ok {
		t.Error("interior pixel drawn")
	}
}

func TestFillRect(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		want           []panelsim.Op
		wantErr        error
	}{
		{
			"inside", 1, 2, 2, 3,
			append(windowOps(1, 2, 2, 3), dataOp(0xF8, 0, 0xF8, 0, 0xF8, 0, 0xF8, 0)),
			nil,
		},
		{
			"clamped", -5, 318, 0, 400,
			append(windowOps(0, 0, 318, 319), dataOp(0xF8, 0, 0xF8, 0)),
			nil,
		},
		{"off screen", 200, 0, 210, 10, nil, nil},
		{"inverted x", 5, 0, 4, 1, nil, ErrInvalidWindow},
		{"inverted y", 0, 5, 1, 4, nil, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, &WCH172x320, nil)
			err := r.dev.FillRect(tt.x0, tt.y0, tt.x1, tt.y1, rgb565.Red)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FillRect() error = %v, want %v", err, tt.wantErr)
			}
			compareOps(t, r.sim.Ops(), tt.want)
		})
	}
}

func TestFillRectBatches(t *testing.T) {
	r := newRig(t, &WCH172x320, &Opts{FillBatch: 4})
	if err := r.dev.FillRect(0, 0, 2, 2, rgb565.White); err != nil {
		t.Fatalf("FillRect() error = %v", err)
	}
	ops := r.sim.Ops()[5:]
	sizes := []int{}
	for _, op := range ops {
		sizes = append(sizes, len(op.W))
	}
	// 9 pixels through a 4 pixel batch.
	if len(sizes) != 3 || sizes[0] != 8 || sizes[1] != 8 || sizes[2] != 2 {
		t.Errorf("write sizes = %v, want [8 8 2]", sizes)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if c := r.sim.At(x, y); c != rgb565.White {
				t.Errorf("pixel (%d, %d) = %#04x, want white", x, y, c)
			}
		}
	}
}

func TestFillScreen(t *testing.T) {
	r := newRig(t, &WCH172x320, nil)
	if err := r.dev.FillScreen(rgb565.Cyan); err != nil {
		t.Fatalf("FillScreen() error = %v", err)
	}
	ops := r.sim.Ops()
	// 172*320 pixels in batches of 256.
	if len(ops) != 5+215 {
		t.Fatalf("FillScreen() sent %d transactions, want 220", len(ops))
	}
	compareOps(t, ops[:5], windowOps(0, 171, 0, 319))
	for _, p := range [][2]int{{0, 0}, {171, 0}, {0, 319}, {171, 319}, {86, 160}} {
		if c := r.sim.At(p[0], p[1]); c != rgb565.Cyan {
			t.Errorf("pixel %v = %#04x, want cyan", p, c)
		}
	}
}

func TestDrawCircle(t *testing.T) {
	t.Run("zero radius", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		if err := r.dev.DrawCircle(10, 10, 0, rgb565.White); err != nil {
			t.Fatalf("DrawCircle() error = %v", err)
		}
		// Eight reflections of the same point, 6 transactions each.
		if n := len(r.sim.Ops()); n != 48 {
			t.Errorf("sent %d transactions, want 48", n)
		}
		got := lit(r.sim, 20, 20)
		if len(got) != 1 || got[[2]int{10, 10}] != rgb565.White {
			t.Errorf("lit = %v, want only the centre", got)
		}
	})

	t.Run("symmetry", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		const cx, cy, rad = 20, 20, 7
		if err := r.dev.DrawCircle(cx, cy, rad, rgb565.White); err != nil {
			t.Fatalf("DrawCircle() error = %v", err)
		}
		got := lit(r.sim, 41, 41)
		for _, p := range [][2]int{{cx + rad, cy}, {cx - rad, cy}, {cx, cy + rad}, {cx, cy - rad}} {
			if _, ok := got[p]; !ok {
				t.Errorf("axis point %v missing", p)
			}
		}
		for p := range got {
			dx, dy := p[0]-cx, p[1]-cy
			for _, q := range [][2]int{{-dx, dy}, {dx, -dy}, {dy, dx}, {-dy, -dx}} {
				if _, ok := got[[2]int{cx + q[0], cy + q[1]}]; !ok {
					t.Errorf("reflection of %v missing", p)
				}
			}
		}
		if _, ok := got[[2]int{cx, cy}]; ok {
			t.Error("centre drawn")
		}
	})

	t.Run("negative radius", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		if err := r.dev.DrawCircle(10, 10, -1, rgb565.White); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("DrawCircle() error = %v, want ErrInvalidWindow", err)
		}
		if n := len(r.sim.Ops()); n != 0 {
			t.Errorf("sent %d transactions", n)
		}
	})
}

func TestFillGradient(t *testing.T) {
	r := newRig(t, &WCH172x320, nil)
	if err := r.dev.FillGradient(0, 0, 3, 9, rgb565.Black, rgb565.White); err != nil {
		t.Fatalf("FillGradient() error = %v", err)
	}
	// One window, then one write per row.
	if n := len(r.sim.Ops()); n != 5+10 {
		t.Errorf("sent %d transactions, want 15", n)
	}
	tests := []struct {
		y    int
		want rgb565.Color
	}{
		{0, rgb565.Black},
		{5, 0x7BEF},
		{9, 0xDF1B},
	}
	for _, tt := range tests {
		for x := 0; x < 4; x++ {
			if got := r.sim.At(x, tt.y); got != tt.want {
				t.Errorf("pixel (%d, %d) = %#04x, want %#04x", x, tt.y, got, tt.want)
			}
		}
	}
}

func TestFillFunc(t *testing.T) {
	r := newRig(t, &LCD1in47, nil)
	checker := func(x, y int) rgb565.Color {
		if (x+y)%2 == 0 {
			return rgb565.Yellow
		}
		return rgb565.Magenta
	}
	if err := r.dev.FillFunc(168, 316, 180, 330, checker); err != nil {
		t.Fatalf("FillFunc() error = %v", err)
	}
	compareOps(t, r.sim.Ops()[:5], windowOps(0x22+168, 0x22+171, 316, 319))
	for y := 316; y < 320; y++ {
		for x := 168; x < 172; x++ {
			if got, want := r.sim.At(x, y), checker(x, y); got != want {
				t.Errorf("pixel (%d, %d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
	if err := r.dev.FillFunc(3, 0, 2, 0, checker); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("FillFunc() with inverted corners error = %v", err)
	}
}

func TestDrawBitmap(t *testing.T) {
	const R, G = rgb565.Red, rgb565.Green
	bitmap := []rgb565.Color{
		R, 0, G,
		0, G, 0,
	}

	t.Run("transparent", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		if err := r.dev.DrawBitmap(4, 5, 3, 2, bitmap); err != nil {
			t.Fatalf("DrawBitmap() error = %v", err)
		}
		// Three opaque pixels, 6 transactions each.
		if n := len(r.sim.Ops()); n != 18 {
			t.Errorf("sent %d transactions, want 18", n)
		}
		got := lit(r.sim, 10, 10)
		want := map[[2]int]rgb565.Color{{4, 5}: R, {6, 5}: G, {5, 6}: G}
		if len(got) != len(want) {
			t.Errorf("lit = %v, want %v", got, want)
		}
		for p, c := range want {
			if got[p] != c {
				t.Errorf("pixel %v = %#04x, want %#04x", p, got[p], c)
			}
		}
	})

	t.Run("scaled", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		if err := r.dev.DrawBitmapScaled(0, 0, 3, 2, 2, bitmap); err != nil {
			t.Fatalf("DrawBitmapScaled() error = %v", err)
		}
		got := lit(r.sim, 10, 10)
		if len(got) != 12 {
			t.Errorf("lit %d pixels, want 12", len(got))
		}
		for _, p := range [][2]int{{0, 0}, {1, 1}, {4, 0}, {5, 1}, {2, 2}, {3, 3}} {
			if _, ok := got[p]; !ok {
				t.Errorf("pixel %v not drawn", p)
			}
		}
		if _, ok := got[[2]int{2, 0}]; ok {
			t.Error("transparent block drawn")
		}
	})

	t.Run("short bitmap", func(t *testing.T) {
		r := newRig(t, &WCH172x320, nil)
		if err := r.dev.DrawBitmap(0, 0, 3, 3, bitmap); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("DrawBitmap() error = %v, want ErrInvalidWindow", err)
		}
	})
}

func TestDisplayer(t *testing.T) {
	r := newRig(t, &WCH172x320, &Opts{Orientation: Landscape})
	if w, h := r.dev.Size(); w != 320 || h != 172 {
		t.Errorf("Size() = %d, %d, want 320, 172", w, h)
	}
	r.dev.SetPixel(0, 0, color.RGBA{R: 0xFF, A: 0xFF})
	if err := r.dev.Display(); err != nil {
		t.Errorf("Display() error = %v", err)
	}
	if got := r.sim.At(0, 319); got != rgb565.Red {
		t.Errorf("pixel = %#04x, want red", got)
	}

	if err := r.dev.Halt(); err != nil {
		t.Fatalf("Halt() error = %v", err)
	}
	r.dev.SetPixel(1, 1, color.RGBA{G: 0xFF, A: 0xFF})
	if err := r.dev.Display(); !errors.Is(err, ErrHalted) {
		t.Errorf("Display() error = %v, want ErrHalted", err)
	}
	if err := r.dev.Display(); err != nil {
		t.Errorf("second Display() error = %v, want nil", err)
	}
}

func TestTinyfont(t *testing.T) {
	r := newRig(t, &WCH172x320, nil)
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(r.dev, &proggy.TinySZ8pt7b, 2, 12, "Hi", white)
	if err := r.dev.Display(); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	got := lit(r.sim, 30, 20)
	if len(got) == 0 {
		t.Fatal("no text rendered")
	}
	for p, c := range got {
		if c != rgb565.White {
			t.Errorf("pixel %v = %#04x, want white", p, c)
		}
	}
}
