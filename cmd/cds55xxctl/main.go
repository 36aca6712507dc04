// Command cds55xxctl is a plain flag-based command line tool for
// exercising a CDS55xx servo bus: discovering servos, pinging, reading
// and writing registers, and pushing a firmware image. Subcommands
// dispatch on os.Args[1]; no third-party CLI framework is used.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cds55xx/servobus/pkg/config"
	"github.com/cds55xx/servobus/pkg/discovery"
	"github.com/cds55xx/servobus/pkg/firmware"
	"github.com/cds55xx/servobus/pkg/protocol"
)

func main() {
	log.SetLevel(log.InfoLevel)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "ping":
		err = runPing(os.Args[2:])
	case "read":
		err = runRead(os.Args[2:])
	case "write":
		err = runWrite(os.Args[2:])
	case "discover":
		err = runDiscover(os.Args[2:])
	case "flash":
		err = runFlash(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cds55xxctl <ping|read|write|discover|flash> [flags]")
}

func runPing(args []string) error {
	fs := newFlagSet("ping")
	port := fs.String("port", "/dev/ttyUSB0", "serial port")
	baud := fs.Int("baud", 115200, "baud rate")
	id := fs.Int("id", 1, "servo id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, err := openBus(*port, *baud)
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := config.NewConfigurator(engine, byte(*id)).WithTimeout(defaultRequestTimeout)
	errFlags, err := cfg.Ping()
	if err != nil {
		return fmt.Errorf("ping id %d: %w", *id, err)
	}
	if !errFlags.None() {
		fmt.Printf("id %d responded (fault: %s)\n", *id, errFlags.Describe())
		return nil
	}
	fmt.Printf("id %d responded\n", *id)
	return nil
}

func runRead(args []string) error {
	fs := newFlagSet("read")
	port := fs.String("port", "/dev/ttyUSB0", "serial port")
	baud := fs.Int("baud", 115200, "baud rate")
	id := fs.Int("id", 1, "servo id")
	addr := fs.Int("addr", 0, "register address")
	length := fs.Int("len", 1, "bytes to read (1 or 2)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, err := openBus(*port, *baud)
	if err != nil {
		return err
	}
	defer engine.Close()

	frame := protocol.New(byte(*id)).Read(byte(*addr), byte(*length))
	payload, errFlags, err := engine.SendAndWait(frame, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("read id %d addr 0x%02x: %w", *id, *addr, err)
	}
	if !errFlags.None() {
		fmt.Fprintf(os.Stderr, "id %d reported fault: %s\n", *id, errFlags.Describe())
	}
	fmt.Printf("% x\n", payload)
	return nil
}

func runWrite(args []string) error {
	fs := newFlagSet("write")
	port := fs.String("port", "/dev/ttyUSB0", "serial port")
	baud := fs.Int("baud", 115200, "baud rate")
	id := fs.Int("id", 1, "servo id")
	addr := fs.Int("addr", 0, "register address")
	data := fs.String("data", "", "comma-separated hex bytes, e.g. 0x01,0x02")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bytes, err := parseHexBytes(*data)
	if err != nil {
		return err
	}

	engine, err := openBus(*port, *baud)
	if err != nil {
		return err
	}
	defer engine.Close()

	frame := protocol.New(byte(*id)).Write(byte(*addr), bytes...)
	_, errFlags, err := engine.SendAndWait(frame, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("write id %d addr 0x%02x: %w", *id, *addr, err)
	}
	if !errFlags.None() {
		fmt.Fprintf(os.Stderr, "id %d reported fault: %s\n", *id, errFlags.Describe())
	}
	fmt.Println("ok")
	return nil
}

func runDiscover(args []string) error {
	fs := newFlagSet("discover")
	port := fs.String("port", "/dev/ttyUSB0", "serial port")
	bauds := fs.String("bauds", "115200,57600,19200,9600", "comma-separated baud rates to sweep")
	verify := fs.Bool("verify", true, "re-ping each id before reporting it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var baudRates []int
	for _, s := range strings.Split(*bauds, ",") {
		b, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid baud rate %q: %w", s, err)
		}
		baudRates = append(baudRates, b)
	}

	found := make(chan struct {
		baud     int
		id       byte
		errFlags protocol.ErrorFlags
	}, 64)
	scanner := discovery.NewScanner(*port, discovery.Config{
		BaudRates: baudRates,
		Verify:    *verify,
		Callback: func(baud int, id byte, errFlags protocol.ErrorFlags) {
			found <- struct {
				baud     int
				id       byte
				errFlags protocol.ErrorFlags
			}{baud, id, errFlags}
		},
	})

	if err := scanner.Start(); err != nil {
		return err
	}
	for scanner.State() != discovery.StateIdle {
		select {
		case f := <-found:
			if f.errFlags.None() {
				fmt.Printf("found servo id=%d at %d baud\n", f.id, f.baud)
			} else {
				fmt.Printf("found servo id=%d at %d baud (fault: %s)\n", f.id, f.baud, f.errFlags.Describe())
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	scanner.Stop()
	return nil
}

func runFlash(args []string) error {
	fs := newFlagSet("flash")
	port := fs.String("port", "/dev/ttyUSB0", "serial port")
	baud := fs.Int("baud", 115200, "servo's current operating baud rate")
	id := fs.Int("id", 1, "servo id")
	imagePath := fs.String("image", "", "path to the firmware image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *imagePath == "" {
		return fmt.Errorf("flash: -image is required")
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		return fmt.Errorf("read firmware image: %w", err)
	}

	updater := firmware.NewUpdater(firmware.Config{
		PortName:      *port,
		OperatingBaud: *baud,
		ServoID:       byte(*id),
		Image:         image,
	})
	fmt.Printf("flashing %d bytes to id %d\n", len(image), *id)
	if err := updater.Run(); err != nil {
		return fmt.Errorf("flash id %d: %w", *id, err)
	}
	fmt.Println("flash complete")
	return nil
}

func parseHexBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseUint(strings.TrimPrefix(p, "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q: %w", p, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}
