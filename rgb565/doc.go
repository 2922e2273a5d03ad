// Package rgb565 provides the 16-bit RGB565 colour format used by ST7789 panels.
//
// A colour packs 5 bits of red, 6 bits of green and 5 bits of blue into a
// uint16, red in the most significant bits:
//
//	bit  15 14 13 12 11 10 9 8 7 6 5 4 3 2 1 0
//	     R  R  R  R  R  G  G G G G G B B B B B
//
// The panel receives each pixel as two bytes, high byte first. Image stores
// its pixels in that wire order so a row of Pix can be clocked out unchanged.
//
// This package provides:
//
// - Color: a colour value implementing color.Color
// - Model: a color.Model converting any colour to Color
// - Image: a draw.Image backed by big-endian RGB565 pixels
// - Interpolate and Color.Scale for gradients and fading
//
// Example usage:
//
//	img := rgb565.NewImage(image.Rect(0, 0, 172, 320))
//	img.SetRGB565(10, 20, rgb565.Red)
//	draw.Draw(img, img.Bounds(), image.NewUniform(rgb565.Blue), image.Point{}, draw.Src)
package rgb565
