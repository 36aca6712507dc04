package transport

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIODirectionLine drives an RS-485 transceiver's direction-control
// pin: high to transmit, low to listen.
type GPIODirectionLine struct {
	pin gpio.PinIO
}

// OpenDirectionLine initializes the host's GPIO subsystem and returns a
// DirectionLine driving the named pin (e.g. "GPIO17"). The line starts
// low (receive mode).
func OpenDirectionLine(name string) (*GPIODirectionLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("transport: gpio host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("transport: no such gpio pin %q", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("transport: configure %q as output: %w", name, err)
	}
	return &GPIODirectionLine{pin: pin}, nil
}

// Set drives the pin high for LevelTransmit and low for LevelReceive.
func (d *GPIODirectionLine) Set(level Level) error {
	if level == LevelTransmit {
		return d.pin.Out(gpio.High)
	}
	return d.pin.Out(gpio.Low)
}
