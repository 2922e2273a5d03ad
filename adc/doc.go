// Package adc runs a single analog channel in continuous conversion and
// publishes the latest raw result.
//
// A Sampler drives a Converter, the register-level view of an ADC
// peripheral. Init configures the channel, runs the reset and start
// calibration steps to completion and enables the end-of-conversion
// interrupt before starting conversions. From then on HandleInterrupt,
// called from the interrupt handler, copies each result into a lock-free
// cell that Latest and Read return without blocking.
//
//	s, err := adc.New(conv, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := s.Init(); err != nil {
//		log.Fatal(err)
//	}
//	for range time.Tick(50 * time.Millisecond) {
//		fmt.Printf("adc_data = %d\n", s.Latest())
//	}
//
// PinConverter turns any periph analog.PinADC into a Converter that converts
// on a ticker, which is how the sampler runs on a host.
package adc
