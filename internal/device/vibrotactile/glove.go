// Package vibrotactile drives a 16-channel wrist-worn LRA (linear
// resonant actuator) glove over a serial link, translating brush
// evaluations into per-transducer amplitudes via a polynomial falloff
// function, (1-(d/30mm)^4)^7, of the planar distance from each
// transducer's fixed position to the brush's current control point.
package vibrotactile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
)

const (
	numDrivers  = 16
	cobsDelim   = 0x88
	headerLen   = 1
	footerLen   = 1
	packetLen   = headerLen + numDrivers + footerLen
	maxDistMM   = 30.0
	baudRate    = 921_600
	portTimeout = 100 * time.Millisecond
)

var ackPacket = []byte("OKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKOKO\r\n")

// Position is a fixed transducer location in millimeters on the glove,
// relative to the palm-top-center reference point. Z is always 0 — the
// falloff function only considers planar distance.
type Position struct {
	X, Y float64
}

// Named LRA mounting positions, in millimeters, for a left hand worn
// palm-down. These are physical layout constants from the glove's
// mechanical design, not tunable parameters.
var (
	PalmTopCenter    = Position{0, 0}
	PalmTopLeft      = Position{-26, 0}
	PalmTopRight     = Position{28, 0}
	PalmBottomCenter = Position{0, -39}
	PalmBottomLeft   = Position{-26, -38}
	PalmBottomRight  = Position{28, -37}
	Wrist            = Position{-1, -74}
	Thumb            = Position{63, -7}
	IndexFingerBase  = Position{33, 36}
	IndexFingerTip   = Position{36, 76}
	MiddleFingerBase = Position{9, 44}
	MiddleFingerTip  = Position{11, 84}
	RingFingerBase   = Position{-14, 41}
	RingFingerTip    = Position{-16, 76}
	LittleFingerBase = Position{-35, 36}
	LittleFingerTip  = Position{-40, 58}
)

// Layout assigns one of the 16 named positions to each of the 16 driver
// channels, in CN1-CN4 mux order.
type Layout [numDrivers]Position

// DefaultLayout is the stock glove wiring for a left hand worn palm down.
var DefaultLayout = Layout{
	PalmTopCenter, PalmTopLeft, PalmTopRight, PalmBottomCenter,
	PalmBottomLeft, PalmBottomRight, Wrist, Thumb,
	IndexFingerBase, IndexFingerTip, MiddleFingerBase, MiddleFingerTip,
	RingFingerBase, RingFingerTip, LittleFingerBase, LittleFingerTip,
}

// IOPort is the byte-stream a Glove drives — a real serial.Port or a
// test/mock stand-in.
type IOPort interface {
	io.Writer
	io.Reader
	ClearRxBuf()
}

// serialIOPort adapts go.bug.st/serial's Port to IOPort.
type serialIOPort struct{ serial.Port }

func (s serialIOPort) ClearRxBuf() { _ = s.ResetInputBuffer() }

// MockIO simulates a glove over no hardware at all: writes are accepted
// instantly, reads block for deviceLatency (minus time already spent
// since the last write) and then return the full ACK packet — just enough
// to make the ACK protocol happy in tests and for a glove configured
// without a serial port.
type MockIO struct {
	deviceLatency time.Duration
	writeTime     time.Time
}

// NewMockIO builds a MockIO with a 100-microsecond simulated device
// latency, matching the original glove firmware's observed round trip.
func NewMockIO() *MockIO {
	return &MockIO{deviceLatency: 100 * time.Microsecond, writeTime: time.Now()}
}

func (m *MockIO) Write(p []byte) (int, error) {
	m.writeTime = time.Now()
	return len(p), nil
}

func (m *MockIO) Read(p []byte) (int, error) {
	remaining := m.deviceLatency - time.Since(m.writeTime)
	if remaining > 0 {
		time.Sleep(remaining)
	}
	n := copy(p, ackPacket)
	return n, nil
}

func (m *MockIO) ClearRxBuf() {}

// Glove drives a 16-channel vibrotactile glove over an IOPort.
type Glove struct {
	io     IOPort
	layout Layout
	rxBuf  []byte
}

// ListPorts enumerates serial ports that could plausibly be the glove,
// for CLI device selection.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// NewForSerialPort opens the named serial port at the glove's fixed baud
// rate and read timeout.
func NewForSerialPort(portName string, layout Layout) (*Glove, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("vibrotactile: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(portTimeout); err != nil {
		return nil, fmt.Errorf("vibrotactile: set read timeout: %w", err)
	}
	return &Glove{io: serialIOPort{port}, layout: layout, rxBuf: make([]byte, 256)}, nil
}

// NewMock builds a Glove driven by a MockIO — no hardware required.
func NewMock(layout Layout) *Glove {
	return &Glove{io: NewMockIO(), layout: layout, rxBuf: make([]byte, 256)}
}

// setDriverAmplitudes builds the COBS-delimited packet for one frame of
// 16 driver amplitudes, writes it, and blocks until the glove's ACK
// response is read back.
func (g *Glove) setDriverAmplitudes(amplitudes [numDrivers]byte) error {
	buf := make([]byte, 0, packetLen)
	buf = append(buf, cobsDelim)
	buf = append(buf, amplitudes[:]...)
	buf = append(buf, cobsDelim)

	// COBS-like framing: walk backward from the trailing delimiter,
	// replacing each delimiter byte with the distance to the next one.
	lastDelimIdx := len(buf) - 1
	for i := len(buf) - 2; i >= 0; i-- {
		if buf[i] == cobsDelim {
			buf[i] = byte(lastDelimIdx - i)
			lastDelimIdx = i
		}
	}

	g.io.ClearRxBuf()
	if _, err := g.io.Write(buf); err != nil {
		return fmt.Errorf("vibrotactile: write: %w", err)
	}

	var response []byte
	for {
		n, err := g.io.Read(g.rxBuf)
		if err != nil {
			return fmt.Errorf("vibrotactile: read: %w", err)
		}
		response = append(response, g.rxBuf[:n]...)
		if bytes.ContainsRune(response, '\n') {
			break
		}
	}
	if !bytes.HasPrefix(response, ackPacket) {
		return fmt.Errorf("vibrotactile: unexpected device response: %q", response)
	}
	return nil
}

// falloff maps a planar distance (as a fraction of maxDistMM) to an
// amplitude multiplier in [0, 1]: full strength at zero distance, easing
// out to silence at maxDistMM and beyond.
func falloff(distMM float64) float64 {
	x := clamp01(distMM / maxDistMM)
	y := math.Pow(1-math.Pow(x, 4), 7)
	return clamp01(y)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// calcDriverAmplitudes computes, for each of the 16 LRA positions, the
// maximum falloff-weighted intensity across every control point in the
// batch, scaled to a u8 drive level.
func (g *Glove) calcDriverAmplitudes(evals []pattern.BrushAtAnimLocalTime) [numDrivers]byte {
	var amps [numDrivers]byte
	for driverIdx, pos := range g.layout {
		maxAmp := 0.0
		for _, e := range evals {
			cx, cy := e.ULControlPoint.Coords.X, e.ULControlPoint.Coords.Y
			dist := math.Hypot(cx-pos.X, cy-pos.Y)
			amp := falloff(dist) * e.ULControlPoint.Intensity
			if amp > maxAmp {
				maxAmp = amp
			}
		}
		amps[driverIdx] = byte(clamp01(maxAmp) * 255.0)
	}
	return amps
}

// ApplyBatch renders one callback-period batch of brush evaluations to
// the glove.
func (g *Glove) ApplyBatch(evals []pattern.BrushAtAnimLocalTime) error {
	return g.setDriverAmplitudes(g.calcDriverAmplitudes(evals))
}

// StopAll silences every transducer.
func (g *Glove) StopAll() error {
	logrus.Debug("vibrotactile: stopping all drivers")
	return g.setDriverAmplitudes([numDrivers]byte{})
}
