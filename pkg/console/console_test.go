package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/hal"
	"github.com/itohio/wally/pkg/hal/sim"
	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

type fakePort struct {
	in  bytes.Buffer
	out bytes.Buffer
	err error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }

func (p *fakePort) lines() []string {
	s := strings.TrimSuffix(p.out.String(), "\r\n")
	p.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

func newConsole(t *testing.T) (*Console, *fakePort, *daq.Aggregator, *sim.Board) {
	t.Helper()

	descs, err := sensor.NewDescriptors(
		sensor.Descriptor{Name: "temperature", Kind: sensor.Temperature, Pin: 34, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin},
		sensor.Descriptor{Name: "force", Kind: sensor.Force, Pin: 35, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin},
		sensor.Descriptor{Name: "photogate", Kind: sensor.Photogate, Pin: 4, Trigger: hal.NoPin, Echo: hal.NoPin, Indicator: hal.NoPin},
	)
	require.NoError(t, err)

	clock := sim.NewClock(0, 0)
	board := sim.NewBoard(clock)
	board.SetRaw(34, 2048)
	board.SetRaw(35, 3102)
	board.SetLevel(4, true)

	agg := daq.New(daq.Config{SampleDelay: time.Millisecond, TimeBetweenReadings: 500 * time.Millisecond},
		board, clock, descs, vernier.New(vernier.DefaultThreshold))

	port := &fakePort{}
	c := New(port, agg)
	agg.Observe(c)
	agg.ObserveCommands(c)
	return c, port, agg, board
}

func TestConsole_Banner(t *testing.T) {
	c, port, _, _ := newConsole(t)
	c.Banner()

	lines := port.lines()
	assert.Contains(t, lines, "t: temperature")
	assert.Contains(t, lines, "Vernier Format 2")
	assert.Equal(t, "seconds\tdegrees Celsius", lines[len(lines)-1])
}

func TestConsole_Commands(t *testing.T) {
	c, port, agg, _ := newConsole(t)

	port.in.WriteString("f\r\n")
	require.NoError(t, c.Poll())
	assert.Equal(t, sensor.Force, agg.Machine().State().Active)

	lines := port.lines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "Sensor changed to force", lines[0])
	assert.Equal(t, vernier.Header(sensor.Force), lines[1:])

	port.in.WriteString("d x")
	require.NoError(t, c.Poll())
	assert.False(t, agg.Machine().State().ReadingActive)
	assert.Equal(t, []string{"Readings stopped", "Unknown command: x"}, port.lines())

	port.in.WriteString("c")
	require.NoError(t, c.Poll())
	assert.Equal(t, []string{"Readings continued"}, port.lines())
}

func TestConsole_ReselectPrintsHeader(t *testing.T) {
	c, port, _, _ := newConsole(t)

	port.in.WriteString("t")
	require.NoError(t, c.Poll())
	lines := port.lines()
	assert.Equal(t, "Sensor changed to temperature", lines[0])
	assert.Equal(t, "Vernier Format 2", lines[1])
}

func TestConsole_NoInput(t *testing.T) {
	c, port, _, _ := newConsole(t)
	require.NoError(t, c.Poll())
	assert.Empty(t, port.lines())
}

func TestConsole_ReadError(t *testing.T) {
	c, port, _, _ := newConsole(t)
	port.err = errors.New("unplugged")
	assert.ErrorContains(t, c.Poll(), "unplugged")
}

func TestConsole_DataLines(t *testing.T) {
	_, port, agg, board := newConsole(t)

	agg.Report()
	lines := port.lines()
	require.Len(t, lines, 1, "only the selected sensor is echoed")
	assert.True(t, strings.HasSuffix(lines[0], "\t115.04"), lines[0])

	agg.Command("f")
	port.lines()
	agg.Report()
	agg.Report()
	// the first report already counted one force reading
	assert.Equal(t, []string{"0.500\t-0.01", "1.000\t-0.01"}, port.lines())

	agg.Command("p")
	port.lines()
	board.SetLevel(4, false)
	agg.Report()
	agg.Report()
	lines = port.lines()
	require.Len(t, lines, 1, "photogate prints only on the blocking edge")
	assert.Regexp(t, `^\d+\t\d+$`, lines[0])
}

func TestConsole_HTTPCommandsEcho(t *testing.T) {
	_, port, agg, _ := newConsole(t)

	agg.Command("p")
	lines := port.lines()
	assert.Equal(t, "Sensor changed to photogate", lines[0])
	assert.Equal(t, "Photogate blocked times taken using ESP32", lines[2])
}
