// Package st7789 controls an ST7789 colour LCD controller via SPI.
//
// The ST7789 drives up to 240×320 RGB565 pixels. This driver targets the
// common 1.47" 172×320 IPS modules and implements the display.Drawer
// interface from periph.io and the Displayer interface from tinygo drivers.
//
// # Display Characteristics
//
// - 16-bit colour (RGB565), sent high byte first
// - 240×320 GRAM, of which the glass shows a W×H window at a fixed offset
// - Four scan directions selected through MADCTL
// - Hardware vertical scrolling
// - Colour inversion and sleep mode
//
// # Hardware Connection
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL         → SPI Clock (SCLK)
//	SDA         → SPI Data (MOSI)
//	DC          → GPIO
//	CS          → SPI Chip Select, or a GPIO passed as Opts.CS
//	RES         → Optional: GPIO for hardware reset
//	BLK         → Optional: GPIO or PWM pin for the backlight
//
// # Basic Usage
//
//	if _, err := host.Init(); err != nil {
//		log.Fatal(err)
//	}
//	b, err := spireg.Open("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	dev, err := st7789.NewSPI(b, gpioreg.ByName("GPIO25"), &st7789.Opts{
//		Panel: &st7789.LCD1in47,
//		RST:   gpioreg.ByName("GPIO27"),
//		BL:    gpioreg.ByName("GPIO18"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Halt()
//
//	dev.FillScreen(rgb565.Black)
//	dev.DrawCircle(86, 160, 40, rgb565.Yellow)
//
// # Panels
//
// A Panel holds the glass geometry, the reset timing and the power-up
// register table as plain data. WCH172x320 and LCD1in47 reproduce the vendor
// sequences; custom panels can be described the same way and are checked by
// Panel.Validate before use.
//
// # Drawing
//
// The primitives (DrawPixel, DrawLine, DrawRect, FillRect, DrawCircle,
// FillGradient, FillFunc, DrawBitmap) write straight to the panel through a
// window sized to the shape. Pixels outside Bounds are clipped silently.
//
// Draw keeps a copy of the last frame and only sends the bounding box of the
// pixels that changed:
//
//	img := rgb565.NewImage(dev.Bounds())
//	draw.Draw(img, image.Rect(10, 10, 50, 50), image.NewUniform(rgb565.Red), image.Point{}, draw.Src)
//	dev.Draw(dev.Bounds(), img, image.Point{})
//
// # Streaming From Flash
//
// DrawRegionFromSource copies a stored image from a Source, such as serial
// flash, into a region of the panel. Two staging buffers alternate so the
// read of the next chunk overlaps the write of the current one:
//
//	st := st7789.NewStaging(256)
//	err := dev.DrawRegionFromSource(0, 0, 172, 320, flash, 0x000000, st)
//
// Waits on busy transfer engines are bounded by Opts.BusyTimeout and fail
// with ErrTimeout.
//
// # Datasheet
//
// https://www.rhydolabz.com/documents/33/ST7789.pdf
package st7789
