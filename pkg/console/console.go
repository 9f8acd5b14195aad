// Package console speaks the Vernier serial protocol: single-character
// commands in, "Vernier Format 2" headers and tab separated data out.
package console

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

// Port is the byte stream the console talks over. serial.Port satisfies it.
type Port interface {
	io.Reader
	io.Writer
}

// Commander executes a command, typically a *daq.Aggregator.
type Commander interface {
	Command(cmd string) vernier.Result
}

// Console is driven from the server loop: Poll consumes pending input, the
// observer methods print. It is not safe for concurrent use.
type Console struct {
	port   Port
	cmd    Commander
	active sensor.Kind
	buf    [64]byte
}

// New creates a console. Register it with the aggregator as both reading and
// command observer so output follows commands from any transport.
func New(port Port, cmd Commander) *Console {
	return &Console{
		port:   port,
		cmd:    cmd,
		active: sensor.Temperature,
	}
}

// Banner prints the available commands and the header of the initial sensor.
func (c *Console) Banner() {
	c.println(
		"Wally Vernier sensors",
		"Commands:",
		"t: temperature",
		"f: force",
		"p: photogate",
		"m: motion",
		"d: stop readings",
		"c: continue readings",
	)
	c.println(vernier.Header(c.active)...)
}

// Poll dispatches every pending input byte as a command. Whitespace is
// skipped.
func (c *Console) Poll() error {
	n, err := c.port.Read(c.buf[:])
	for _, b := range c.buf[:n] {
		if strings.ContainsRune(" \t\r\n", rune(b)) {
			continue
		}
		c.cmd.Command(string(b))
	}
	if err != nil && err != io.EOF {
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}

// ObserveCommand prints the command result and, on a sensor selection, the
// selected sensor's header.
func (c *Console) ObserveCommand(res vernier.Result) {
	c.println(res.Message)
	if res.Recognized && strings.Contains("tfpm", res.Command) {
		c.active = res.Active
		c.println(vernier.Header(c.active)...)
	}
}

// ObserveReading prints a data row for readings of the selected sensor.
func (c *Console) ObserveReading(r sensor.Reading) {
	if r.Kind != c.active {
		return
	}
	if line, ok := vernier.DataLine(r); ok {
		c.println(line)
	}
}

func (c *Console) println(lines ...string) {
	if len(lines) == 0 {
		return
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	if _, err := io.WriteString(c.port, b.String()); err != nil {
		log.WithError(err).Warn("console write failed")
	}
}
