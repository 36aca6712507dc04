package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/cds55xx/servobus/pkg/bus"
	"github.com/cds55xx/servobus/pkg/transport"
)

// newFlagSet returns a FlagSet for one subcommand, reporting usage
// errors itself rather than exiting the whole process mid-parse.
func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// openBus opens the named serial port at baud and wraps it in an
// initialized transaction engine, isolating interface-specific setup
// from the subcommand dispatch in main.go.
func openBus(port string, baud int) (*bus.Engine, error) {
	p, err := transport.Open(transport.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", port, baud, err)
	}
	engine := bus.NewEngine(p)
	if err := engine.Init(); err != nil {
		p.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, nil
}

const defaultRequestTimeout = 100 * time.Millisecond
