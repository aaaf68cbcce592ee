// Package serial copies the UART output of a board to the terminal.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/term"
	"golang.org/x/exp/slices"
)

const DefaultBaud = 9600

var ErrNoPort = errors.New("no serial port found")

// portPatterns match the USB serial adapters commonly wired to STM8 boards.
var portPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/cu.usbserial*",
	"/dev/cu.usbmodem*",
}

// Ports lists the serial devices present on the host.
func Ports() []string {
	var ports []string
	for _, pattern := range portPatterns {
		matches, _ := filepath.Glob(pattern)
		ports = append(ports, matches...)
	}
	slices.Sort(ports)
	return ports
}

type Options struct {
	// Port is the device to open. The first of Ports is used when empty.
	Port string
	Baud int
	// ReadTimeout bounds each read so cancellation is noticed.
	ReadTimeout time.Duration
}

// Monitor opens the port in raw mode and copies everything it receives to w
// until ctx is done.
func Monitor(ctx context.Context, opts Options, w io.Writer) error {
	if len(opts.Port) == 0 {
		ports := Ports()
		if len(ports) == 0 {
			return ErrNoPort
		}
		opts.Port = ports[0]
	}
	if opts.Baud <= 0 {
		opts.Baud = DefaultBaud
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}

	t, err := term.Open(opts.Port, term.Speed(opts.Baud), term.RawMode)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Port, err)
	}
	defer t.Close()
	if err := t.SetReadTimeout(opts.ReadTimeout); err != nil {
		return fmt.Errorf("%s: %w", opts.Port, err)
	}

	glog.Infof("monitoring %s at %d baud", opts.Port, opts.Baud)
	return copyUntil(ctx, w, t)
}

// copyUntil copies r to w until ctx is done. A port read that times out
// with nothing to report returns io.EOF, so EOF only means an idle line.
func copyUntil(ctx context.Context, w io.Writer, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
}
