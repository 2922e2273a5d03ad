package st7789

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// selectChip asserts the software chip-select, if any.
func (d *Dev) selectChip() error {
	if d.cs == nil {
		return nil
	}
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7789: failed to assert CS: %w", err)
	}
	return nil
}

// deselectChip releases the software chip-select, if any.
func (d *Dev) deselectChip() error {
	if d.cs == nil {
		return nil
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("st7789: failed to release CS: %w", err)
	}
	return nil
}

func (d *Dev) setDC(l gpio.Level) error {
	if err := d.dc.Out(l); err != nil {
		return fmt.Errorf("st7789: failed to drive DC: %w", err)
	}
	return nil
}

// transfer clocks p out with DC at level l, framed by chip-select. When hold is
// set the chip-select is left asserted afterwards.
func (d *Dev) transfer(l gpio.Level, p []byte, hold bool) error {
	if err := d.setDC(l); err != nil {
		return err
	}
	if err := d.selectChip(); err != nil {
		return err
	}
	if err := d.c.Tx(p, nil); err != nil {
		_ = d.deselectChip()
		return fmt.Errorf("st7789: write failed: %w", err)
	}
	if hold {
		return nil
	}
	return d.deselectChip()
}

// writeCommand sends a single opcode.
func (d *Dev) writeCommand(cmd byte) error {
	return d.transfer(gpio.Low, []byte{cmd}, d.panel.HoldCS)
}

// writeData8 sends one parameter byte.
func (d *Dev) writeData8(b byte) error {
	return d.transfer(gpio.High, []byte{b}, false)
}

// writeData16 sends v high byte first under one chip-select assertion.
func (d *Dev) writeData16(v uint16) error {
	return d.transfer(gpio.High, []byte{byte(v >> 8), byte(v)}, false)
}

// writeData sends a run of parameter or pixel bytes.
func (d *Dev) writeData(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return d.transfer(gpio.High, p, false)
}

// sendCommand sends an opcode followed by its parameters.
func (d *Dev) sendCommand(cmd byte, data ...byte) error {
	if err := d.writeCommand(cmd); err != nil {
		return err
	}
	return d.writeData(data)
}
