package st7789

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Command opcodes.
const (
	NOP       = 0x00
	SWRESET   = 0x01
	SLPIN     = 0x10
	SLPOUT    = 0x11
	NORON     = 0x13
	INVOFF    = 0x20
	INVON     = 0x21
	DISPOFF   = 0x28
	DISPON    = 0x29
	CASET     = 0x2A
	RASET     = 0x2B
	RAMWR     = 0x2C
	VSCRDEF   = 0x33
	TEON      = 0x35
	MADCTL    = 0x36
	VSCRSADD  = 0x37
	COLMOD    = 0x3A
	STE       = 0x44
	PORCTRL   = 0xB2
	GCTRL     = 0xB7
	VCOMS     = 0xBB
	LCMCTRL   = 0xC0
	VDVVRHEN  = 0xC2
	VRHS      = 0xC3
	VDVS      = 0xC4
	FRCTRL2   = 0xC6
	PWCTRL1   = 0xD0
	PVGAMCTRL = 0xE0
	NVGAMCTRL = 0xE1
)

// MADCTL bits.
const (
	MADCTL_MY  = 0x80
	MADCTL_MX  = 0x40
	MADCTL_MV  = 0x20
	MADCTL_ML  = 0x10
	MADCTL_BGR = 0x08
)

// SleepOutDelay is the time the controller needs after SLPOUT before it
// accepts DISPON.
const SleepOutDelay = 120 * time.Millisecond

// Step is one entry of an initialisation table: an opcode, its parameter
// bytes and the time to wait once they are sent.
type Step struct {
	Cmd   byte
	Data  []byte
	Delay time.Duration
}

// ResetStep drives the RST line to Level and holds it for Hold.
type ResetStep struct {
	Level gpio.Level
	Hold  time.Duration
}

// Panel describes a glass and controller combination.
//
// W and H are the visible size in the controller's native orientation.
// ColOffset and RowOffset locate the glass inside the 240×320 GRAM.
type Panel struct {
	Name      string
	W, H      int
	ColOffset int
	RowOffset int
	BGR       bool // colour filter is blue-green-red
	HoldCS    bool // keep CS asserted from a command into its parameters
	Reset     []ResetStep
	Init      []Step
}

// WCH172x320 is the 1.47" 172×320 module driven by the WCH reference board.
var WCH172x320 = Panel{
	Name: "wch-172x320",
	W:    172,
	H:    320,
	BGR:  true,
	Reset: []ResetStep{
		{gpio.Low, 100 * time.Millisecond},
		{gpio.High, 50 * time.Millisecond},
	},
	Init: []Step{
		{Cmd: MADCTL, Data: []byte{0x00}},
		{Cmd: COLMOD, Data: []byte{0x05}}, // 16 bit/pixel
		{Cmd: PORCTRL, Data: []byte{0x0C, 0x0C, 0x00, 0x33, 0x33}},
		{Cmd: GCTRL, Data: []byte{0x17}},
		{Cmd: VCOMS, Data: []byte{0x35}},
		{Cmd: LCMCTRL, Data: []byte{0x2C}},
		{Cmd: VDVVRHEN, Data: []byte{0x01}},
		{Cmd: VRHS, Data: []byte{0x13}},
		{Cmd: VDVS, Data: []byte{0x20}},
		{Cmd: FRCTRL2, Data: []byte{0x18}},
		{Cmd: PWCTRL1, Data: []byte{0xA7, 0xA1}},
		{Cmd: PWCTRL1, Data: []byte{0xA4, 0xA1}},
		{Cmd: 0xD6, Data: []byte{0xA1}}, // gate output GND in sleep
		{Cmd: PVGAMCTRL, Data: []byte{0xF0, 0x00, 0x04, 0x04, 0x04, 0x05, 0x29, 0x33, 0x3E, 0x38, 0x12, 0x12, 0x28, 0x30}},
		{Cmd: NVGAMCTRL, Data: []byte{0xF0, 0x07, 0x0A, 0x0D, 0x0B, 0x07, 0x28, 0x33, 0x3E, 0x36, 0x14, 0x14, 0x29, 0x32}},
		{Cmd: TEON, Data: []byte{0x00}},
		{Cmd: STE, Data: []byte{0x00, 0x10}},
		{Cmd: INVON},
		{Cmd: SLPOUT, Delay: SleepOutDelay},
		{Cmd: DISPON},
	},
}

// LCD1in47 is the Waveshare 1.47" 172×320 module.
var LCD1in47 = Panel{
	Name:      "waveshare-1.47",
	W:         172,
	H:         320,
	ColOffset: 0x22,
	HoldCS:    true,
	Reset: []ResetStep{
		{gpio.High, 100 * time.Millisecond},
		{gpio.Low, 100 * time.Millisecond},
		{gpio.High, 100 * time.Millisecond},
	},
	Init: []Step{
		{Cmd: SLPOUT, Delay: SleepOutDelay},
		{Cmd: COLMOD, Data: []byte{0x05}},
		{Cmd: PORCTRL, Data: []byte{0x0C, 0x0C, 0x00, 0x33, 0x33}},
		{Cmd: GCTRL, Data: []byte{0x35}},
		{Cmd: VCOMS, Data: []byte{0x35}},
		{Cmd: LCMCTRL, Data: []byte{0x2C}},
		{Cmd: VDVVRHEN, Data: []byte{0x01}},
		{Cmd: VRHS, Data: []byte{0x13}},
		{Cmd: VDVS, Data: []byte{0x20}},
		{Cmd: FRCTRL2, Data: []byte{0x0F}},
		{Cmd: PWCTRL1, Data: []byte{0xA4, 0xA1}},
		{Cmd: 0xD6, Data: []byte{0xA1}},
		{Cmd: PVGAMCTRL, Data: []byte{0xF0, 0x00, 0x04, 0x04, 0x04, 0x05, 0x29, 0x33, 0x3E, 0x38, 0x12, 0x12, 0x28, 0x30}},
		{Cmd: NVGAMCTRL, Data: []byte{0xF0, 0x07, 0x0A, 0x0D, 0x0B, 0x07, 0x28, 0x33, 0x3E, 0x36, 0x14, 0x14, 0x29, 0x32}},
		{Cmd: INVON},
		{Cmd: SLPOUT, Delay: SleepOutDelay},
		{Cmd: DISPON},
	},
}

// Panels lists the built-in presets by name.
var Panels = map[string]*Panel{
	WCH172x320.Name: &WCH172x320,
	LCD1in47.Name:   &LCD1in47,
}

// Validate checks that the geometry fits the GRAM and that the init table
// wakes the controller in a legal order: the colour mode is set before the
// last SLPOUT, DISPON comes after it, and at least SleepOutDelay elapses in
// between.
func (p *Panel) Validate() error {
	if p.W <= 0 || p.H <= 0 {
		return errors.New("st7789: panel size must be positive")
	}
	if p.ColOffset < 0 || p.RowOffset < 0 || p.W+p.ColOffset > gramW || p.H+p.RowOffset > gramH {
		return fmt.Errorf("st7789: %dx%d panel at (%d,%d) does not fit the GRAM", p.W, p.H, p.ColOffset, p.RowOffset)
	}
	for i, s := range p.Reset {
		if s.Hold < 0 {
			return fmt.Errorf("st7789: reset step %d has negative hold", i)
		}
	}
	wake := -1
	for i, s := range p.Init {
		if s.Cmd == SLPOUT {
			wake = i
		}
	}
	if wake < 0 {
		return errors.New("st7789: init table never sends SLPOUT")
	}
	colmod := false
	for _, s := range p.Init[:wake] {
		if s.Cmd == COLMOD {
			colmod = true
		}
	}
	if !colmod {
		return errors.New("st7789: init table must set COLMOD before SLPOUT")
	}
	var settle time.Duration
	for _, s := range p.Init[wake:] {
		if s.Cmd == DISPON {
			if settle < SleepOutDelay {
				return fmt.Errorf("st7789: DISPON %v after SLPOUT, need %v", settle, SleepOutDelay)
			}
			return nil
		}
		settle += s.Delay
	}
	return errors.New("st7789: init table must send DISPON after SLPOUT")
}

// invertedByDefault reports whether the init table leaves colour inversion
// on, as IPS glass needs for true colours.
func (p *Panel) invertedByDefault() bool {
	inv := false
	for _, s := range p.Init {
		switch s.Cmd {
		case INVON:
			inv = true
		case INVOFF:
			inv = false
		}
	}
	return inv
}
