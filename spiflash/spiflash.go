package spiflash

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/st7789"
)

// Flash commands.
const (
	cmdRead   byte = 0x03
	cmdReadID byte = 0x9F
)

// MaxAddr is the first address beyond the 24-bit address space.
const MaxAddr = 1 << 24

var (
	// ErrNotOpen is returned by Start outside an Open/Close pair.
	ErrNotOpen = errors.New("spiflash: source not open")
	// ErrAddress is returned for addresses past the 24-bit range.
	ErrAddress = errors.New("spiflash: address out of range")
)

// Opts is the configuration of the flash bus.
type Opts struct {
	Freq physic.Frequency // Clock (default: 20MHz)
	Mode spi.Mode         // Mode (default: Mode0)
}

// DefaultOpts is used by NewSPI when opts is nil.
var DefaultOpts = Opts{
	Freq: 20 * physic.MegaHertz,
}

// Flash is a serial NOR flash chip on an SPI port.
type Flash struct {
	c    spi.Conn
	cs   gpio.PinOut
	addr uint32
	open bool
	zero []byte
}

// NewSPI connects to a flash chip. cs may be nil to rely on the port's
// hardware chip-select.
func NewSPI(p spi.Port, cs gpio.PinOut, opts *Opts) (*Flash, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	freq := opts.Freq
	if freq == 0 {
		freq = DefaultOpts.Freq
	}
	c, err := p.Connect(freq, opts.Mode, 8)
	if err != nil {
		return nil, fmt.Errorf("spiflash: failed to connect: %w", err)
	}
	f := &Flash{c: c, cs: cs}
	if cs != nil {
		if err := cs.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("spiflash: failed to release CS: %w", err)
		}
	}
	return f, nil
}

// ReadID returns the JEDEC manufacturer, memory type and capacity bytes.
func (f *Flash) ReadID() ([3]byte, error) {
	var id [3]byte
	w := []byte{cmdReadID, 0, 0, 0}
	r := make([]byte, len(w))
	if err := f.frame(func() error { return f.c.Tx(w, r) }); err != nil {
		return id, fmt.Errorf("spiflash: failed to read ID: %w", err)
	}
	copy(id[:], r[1:])
	return id, nil
}

// ReadAt reads len(p) bytes starting at addr.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > MaxAddr {
		return 0, ErrAddress
	}
	w := make([]byte, 4+len(p))
	copy(w, header(uint32(off)))
	r := make([]byte, len(w))
	if err := f.frame(func() error { return f.c.Tx(w, r) }); err != nil {
		return 0, fmt.Errorf("spiflash: read failed: %w", err)
	}
	return copy(p, r[4:]), nil
}

// Open starts a sequential read at addr.
func (f *Flash) Open(addr uint32) error {
	if addr >= MaxAddr {
		return ErrAddress
	}
	f.addr = addr
	f.open = true
	if f.cs == nil {
		return nil
	}
	if err := f.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("spiflash: failed to assert CS: %w", err)
	}
	if err := f.c.Tx(header(addr), nil); err != nil {
		_ = f.cs.Out(gpio.High)
		f.open = false
		return fmt.Errorf("spiflash: read command failed: %w", err)
	}
	return nil
}

// Start reads the next len(p) bytes. The read has completed when Start
// returns.
func (f *Flash) Start(p []byte) error {
	if !f.open {
		return ErrNotOpen
	}
	if int64(f.addr)+int64(len(p)) > MaxAddr {
		return ErrAddress
	}
	if f.cs == nil {
		if _, err := f.ReadAt(p, int64(f.addr)); err != nil {
			return err
		}
	} else {
		if cap(f.zero) < len(p) {
			f.zero = make([]byte, len(p))
		}
		if err := f.c.Tx(f.zero[:len(p)], p); err != nil {
			return fmt.Errorf("spiflash: read failed: %w", err)
		}
	}
	f.addr += uint32(len(p))
	return nil
}

// Busy always returns false; reads are synchronous.
func (f *Flash) Busy() bool {
	return false
}

// Close ends the sequential read.
func (f *Flash) Close() error {
	if !f.open {
		return nil
	}
	f.open = false
	if f.cs == nil {
		return nil
	}
	if err := f.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("spiflash: failed to release CS: %w", err)
	}
	return nil
}

func (f *Flash) String() string {
	return fmt.Sprintf("spiflash.Flash{%s}", f.c)
}

// frame runs fn with the chip selected.
func (f *Flash) frame(fn func() error) error {
	if f.cs == nil {
		return fn()
	}
	if f.open {
		return errors.New("spiflash: sequential read in progress")
	}
	if err := f.cs.Out(gpio.Low); err != nil {
		return err
	}
	err := fn()
	if e := f.cs.Out(gpio.High); err == nil {
		err = e
	}
	return err
}

func header(addr uint32) []byte {
	return []byte{cmdRead, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// File serves reads from a flash image held in an io.ReaderAt, typically an
// *os.File written by mkimage.
type File struct {
	r    io.ReaderAt
	off  int64
	open bool
}

// NewFile returns a Source reading from r. Closing the Source does not close
// r.
func NewFile(r io.ReaderAt) *File {
	return &File{r: r}
}

// Open starts a sequential read at addr.
func (f *File) Open(addr uint32) error {
	f.off = int64(addr)
	f.open = true
	return nil
}

// Start reads the next len(p) bytes.
func (f *File) Start(p []byte) error {
	if !f.open {
		return ErrNotOpen
	}
	n, err := f.r.ReadAt(p, f.off)
	f.off += int64(n)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("spiflash: image read at %#x failed: %w", f.off, err)
}

// Busy always returns false.
func (f *File) Busy() bool {
	return false
}

// Close ends the sequential read.
func (f *File) Close() error {
	f.open = false
	return nil
}

var (
	_ st7789.Source = &Flash{}
	_ st7789.Source = &File{}
	_ io.ReaderAt   = &Flash{}
)
