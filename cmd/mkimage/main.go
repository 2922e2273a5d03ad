// Command mkimage converts pictures into the RGB565 layout that
// DrawRegionFromSource streams, and packs them into a flash image.
//
// Each input is scaled to the panel size, converted to big-endian RGB565
// and written at the next sector-aligned address, starting at -addr:
//
//	mkimage -o flash.bin -panel wch-172x320 splash.png car.bmp
//
// The address of every picture is printed so it can be handed to the demo
// with --flash.addr.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/st7789"
	"periph.io/x/devices/v3/st7789/rgb565"
	"periph.io/x/devices/v3/st7789/spiflash"
)

var (
	out       = flag.String("o", "flash.bin", "Flash image to create or update")
	panelName = flag.String("panel", st7789.WCH172x320.Name, "Panel preset giving the picture size")
	landscape = flag.Bool("landscape", false, "Lay pictures out for a landscape display")
	addr      = flag.Uint("addr", 0, "Address of the first picture")
	align     = flag.Uint("align", 4096, "Alignment of each picture, usually the erase sector size")
	fit       = flag.Bool("fit", false, "Keep the aspect ratio and letterbox instead of stretching")
	filter    = flag.String("filter", "catmullrom", "Scaler: nearest, bilinear, catmullrom")
	caption   = flag.String("caption", "", "Text drawn in the bottom left corner of every picture")
)

var filters = map[string]xdraw.Interpolator{
	"nearest":    xdraw.NearestNeighbor,
	"bilinear":   xdraw.BiLinear,
	"catmullrom": xdraw.CatmullRom,
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("Usage: mkimage [flags] picture...")
	}
	panel, ok := st7789.Panels[*panelName]
	if !ok {
		log.Fatalf("Unknown panel %q", *panelName)
	}
	w, h := panel.W, panel.H
	if *landscape {
		w, h = h, w
	}
	interp, ok := filters[*filter]
	if !ok {
		log.Fatalf("Unknown filter %q", *filter)
	}
	if err := checkLayout(*addr, *align); err != nil {
		log.Fatal(err)
	}

	imgs := make([]*rgb565.Image, 0, flag.NArg())
	for _, name := range flag.Args() {
		src, err := decode(name)
		if err != nil {
			log.Fatalf("Failed to decode %s: %v", name, err)
		}
		if src.Bounds().Empty() {
			log.Fatalf("%s has no pixels", name)
		}
		imgs = append(imgs, convert(src, w, h, interp, *fit, *caption))
	}

	f, err := os.OpenFile(*out, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *out, err)
	}
	addrs, err := pack(f, uint32(*addr), uint32(*align), imgs)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	for i, a := range addrs {
		fmt.Printf("%#08x %dx%d %s\n", a, w, h, flag.Arg(i))
	}
}

func decode(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// convert scales src onto a black w×h RGB565 canvas.
func convert(src image.Image, w, h int, interp xdraw.Interpolator, fit bool, caption string) *rgb565.Image {
	dst := rgb565.NewImage(image.Rect(0, 0, w, h))
	dr := dst.Bounds()
	if fit {
		dr = letterbox(src.Bounds(), w, h)
	}
	interp.Scale(dst, dr, src, src.Bounds(), xdraw.Over, nil)
	if caption != "" {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.White),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, h-4),
		}
		d.DrawString(caption)
	}
	return dst
}

// checkLayout rejects a start address or alignment outside the 24-bit flash
// address space.
func checkLayout(addr, align uint) error {
	if addr >= spiflash.MaxAddr {
		return fmt.Errorf("address %#x is beyond the %d byte flash", addr, spiflash.MaxAddr)
	}
	if align > spiflash.MaxAddr {
		return fmt.Errorf("alignment %#x is larger than the flash", align)
	}
	return nil
}

// letterbox returns the largest rectangle with the aspect ratio of sr that
// fits centred in w×h. An empty sr gives an empty rectangle.
func letterbox(sr image.Rectangle, w, h int) image.Rectangle {
	sw, sh := sr.Dx(), sr.Dy()
	if sw <= 0 || sh <= 0 {
		return image.Rectangle{}
	}
	dw, dh := w, sh*w/sw
	if dh > h {
		dw, dh = sw*h/sh, h
	}
	x0, y0 := (w-dw)/2, (h-dh)/2
	return image.Rect(x0, y0, x0+dw, y0+dh)
}

// pack writes imgs one after the other starting at base, each at an address
// that is a multiple of align, and returns where each one landed.
func pack(w io.WriterAt, base, align uint32, imgs []*rgb565.Image) ([]uint32, error) {
	if align == 0 {
		align = 1
	}
	addrs := make([]uint32, 0, len(imgs))
	next := uint64(base)
	for _, img := range imgs {
		next = (next + uint64(align) - 1) / uint64(align) * uint64(align)
		end := next + uint64(len(img.Pix))
		if end > spiflash.MaxAddr {
			return addrs, fmt.Errorf("picture at %#x does not fit in %d bytes of flash", next, spiflash.MaxAddr)
		}
		if _, err := w.WriteAt(img.Pix, int64(next)); err != nil {
			return addrs, err
		}
		addrs = append(addrs, uint32(next))
		next = end
	}
	return addrs, nil
}
