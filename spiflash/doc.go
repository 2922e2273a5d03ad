// Package spiflash reads images out of 25-series serial NOR flash (W25Qxx
// and compatibles) and out of host files holding a copy of the flash.
//
// Flash and File both implement st7789.Source, so a stored image can be
// streamed straight into a panel region:
//
//	flash, err := spiflash.NewSPI(b, gpioreg.ByName("GPIO7"), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = dev.DrawRegionFromSource(0, 0, 172, 320, flash, 0x000000, st7789.NewStaging(256))
//
// Reads use the plain READ (0x03) command with a 24-bit address. When a CS
// pin is given the chip stays selected between Open and Close and every
// Start continues the same read; without one each Start issues its own
// command through the port's hardware chip-select.
package spiflash
