package adc

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrTimeout is returned when a calibration step does not finish in
	// time.
	ErrTimeout = errors.New("adc: timed out")
	// ErrState is returned when an operation does not fit the sampler state.
	ErrState = errors.New("adc: invalid state")
)

// State is the lifecycle of a Sampler.
type State int32

const (
	Uninitialized State = iota
	Calibrating
	Converting
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Calibrating:
		return "Calibrating"
	case Converting:
		return "Converting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SampleTime is the sampling duration of one conversion in ADC clock cycles.
type SampleTime uint8

// Sample times, in ADC clock cycles.
const (
	SampleTime1_5 SampleTime = iota
	SampleTime7_5
	SampleTime13_5
	SampleTime28_5
	SampleTime41_5
	SampleTime55_5
	SampleTime71_5
	SampleTime239_5
)

// halfCycles returns the sample time in half cycles.
func (t SampleTime) halfCycles() int {
	return [...]int{3, 15, 27, 57, 83, 111, 143, 479}[t&7]
}

func (t SampleTime) String() string {
	h := t.halfCycles()
	return fmt.Sprintf("%d.%d cycles", h/2, 5*(h%2))
}

// Align is the placement of the result in the 16-bit data register.
type Align uint8

const (
	AlignRight Align = iota
	AlignLeft
)

// Config describes the conversion.
type Config struct {
	Channel    int
	SampleTime SampleTime
	Continuous bool
	Align      Align
	Bits       int                     // Resolution (default: 12)
	VRef       physic.ElectricPotential // Full scale voltage (default: 3.3V)
}

// DefaultConfig samples channel 10 continuously with the longest sample
// time, right aligned.
var DefaultConfig = Config{
	Channel:    10,
	SampleTime: SampleTime239_5,
	Continuous: true,
	Align:      AlignRight,
	Bits:       12,
	VRef:       3300 * physic.MilliVolt,
}

// Converter is the register-level interface of an ADC peripheral.
type Converter interface {
	// Configure sets the input pin to analog mode and programs the channel.
	Configure(Config) error
	ResetCalibration() error
	ResetCalibrationDone() bool
	StartCalibration() error
	CalibrationDone() bool
	// EnableInterrupt arranges for handler to run on every end of
	// conversion.
	EnableInterrupt(handler func()) error
	StartConversion() error
	EOCPending() bool
	Value() uint16
	ClearEOC()
}

// Opts configures a Sampler.
type Opts struct {
	Config  Config
	Clock   clockwork.Clock // Deadlines (default: real clock)
	Timeout time.Duration   // Limit for each calibration step (default: 100ms)
}

// DefaultOpts is used by New when opts is nil.
var DefaultOpts = Opts{
	Config:  DefaultConfig,
	Timeout: 100 * time.Millisecond,
}

// Sampler publishes the latest conversion of a Converter.
type Sampler struct {
	conv    Converter
	cfg     Config
	clk     clockwork.Clock
	timeout time.Duration

	state  atomic.Int32
	latest atomic.Uint32
	count  atomic.Uint64
}

// New returns a Sampler in the Uninitialized state.
func New(c Converter, opts *Opts) (*Sampler, error) {
	if c == nil {
		return nil, errors.New("adc: converter is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}
	if cfg.Bits == 0 {
		cfg.Bits = DefaultConfig.Bits
	}
	if cfg.Bits < 1 || cfg.Bits > 16 {
		return nil, fmt.Errorf("adc: invalid resolution %d bits", cfg.Bits)
	}
	if cfg.VRef == 0 {
		cfg.VRef = DefaultConfig.VRef
	}
	if cfg.Channel < 0 || cfg.Channel > 17 {
		return nil, fmt.Errorf("adc: invalid channel %d", cfg.Channel)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultOpts.Timeout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Sampler{conv: c, cfg: cfg, clk: clk, timeout: timeout}, nil
}

// Init configures and calibrates the converter, enables the end of
// conversion interrupt and starts converting. It may only be called once.
func (s *Sampler) Init() error {
	if !s.state.CompareAndSwap(int32(Uninitialized), int32(Calibrating)) {
		return fmt.Errorf("%w: Init in state %s", ErrState, s.State())
	}
	if err := s.start(); err != nil {
		s.state.Store(int32(Uninitialized))
		return err
	}
	s.state.Store(int32(Converting))
	return nil
}

func (s *Sampler) start() error {
	if err := s.conv.Configure(s.cfg); err != nil {
		return fmt.Errorf("adc: failed to configure: %w", err)
	}
	if err := s.conv.ResetCalibration(); err != nil {
		return fmt.Errorf("adc: failed to reset calibration: %w", err)
	}
	if err := s.await("reset calibration", s.conv.ResetCalibrationDone); err != nil {
		return err
	}
	if err := s.conv.StartCalibration(); err != nil {
		return fmt.Errorf("adc: failed to start calibration: %w", err)
	}
	if err := s.await("calibration", s.conv.CalibrationDone); err != nil {
		return err
	}
	if err := s.conv.EnableInterrupt(s.HandleInterrupt); err != nil {
		return fmt.Errorf("adc: failed to enable interrupt: %w", err)
	}
	if err := s.conv.StartConversion(); err != nil {
		return fmt.Errorf("adc: failed to start conversion: %w", err)
	}
	return nil
}

// await polls done until it reports true or the step deadline passes.
func (s *Sampler) await(step string, done func() bool) error {
	deadline := s.clk.Now().Add(s.timeout)
	for !done() {
		if !s.clk.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrTimeout, step)
		}
		runtime.Gosched()
	}
	return nil
}

// HandleInterrupt is the end of conversion handler. It stores the result
// and acknowledges the interrupt; other interrupt sources are left alone.
func (s *Sampler) HandleInterrupt() {
	if !s.conv.EOCPending() {
		return
	}
	s.latest.Store(uint32(s.conv.Value()))
	s.conv.ClearEOC()
	s.count.Add(1)
}

// Latest returns the most recent conversion result. It is 0 until the first
// conversion completes.
func (s *Sampler) Latest() uint16 {
	return uint16(s.latest.Load())
}

// Conversions returns the number of results stored so far.
func (s *Sampler) Conversions() uint64 {
	return s.count.Load()
}

// State returns the current lifecycle state.
func (s *Sampler) State() State {
	return State(s.state.Load())
}

// Config returns the conversion settings in use.
func (s *Sampler) Config() Config {
	return s.cfg
}

// full returns the largest raw value.
func (s *Sampler) full() int32 {
	return 1<<s.cfg.Bits - 1
}

// Range implements analog.PinADC.
func (s *Sampler) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: s.cfg.VRef, Raw: s.full()}
}

// Read implements analog.PinADC. It returns the latest result without
// waiting for a new conversion.
func (s *Sampler) Read() (analog.Sample, error) {
	if st := s.State(); st != Converting {
		return analog.Sample{}, fmt.Errorf("%w: Read in state %s", ErrState, st)
	}
	raw := int32(s.Latest())
	if s.cfg.Align == AlignLeft {
		raw >>= 16 - s.cfg.Bits
	}
	return analog.Sample{
		V:   s.cfg.VRef * physic.ElectricPotential(raw) / physic.ElectricPotential(s.full()),
		Raw: raw,
	}, nil
}

// Name implements pin.Pin.
func (s *Sampler) Name() string {
	return fmt.Sprintf("ADC_IN%d", s.cfg.Channel)
}

// Number implements pin.Pin.
func (s *Sampler) Number() int {
	return s.cfg.Channel
}

// Function implements pin.Pin.
func (s *Sampler) Function() string {
	return "ADC"
}

func (s *Sampler) String() string {
	return s.Name()
}

// Halt stops the converter if it supports stopping and returns the sampler
// to Uninitialized.
func (s *Sampler) Halt() error {
	s.state.Store(int32(Uninitialized))
	if h, ok := s.conv.(interface{ Halt() error }); ok {
		return h.Halt()
	}
	return nil
}

var _ analog.PinADC = &Sampler{}
