// Package leapmotion drives an Ultraleap tracking camera through the
// dynamically loaded LeapC shared library, converting raw palm
// coordinates into the engine's haptic coordinate frame.
package leapmotion

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
)

const (
	libraryNameLinux   = "libLeapC.so"
	libraryNameDarwin  = "libLeapC.dylib"
	libraryNameWindows = "LeapC.dll"

	// eLeapEventType_Tracking, from LeapC.h.
	eventTypeTracking = 0x100
	// eLeapRS_Success / eLeapRS_Timeout, from LeapC.h.
	rsSuccess = 0x0
	rsTimeout = 0x1008

	pollTimeoutMS = 1000

	// connectionMessageSize is sized generously to hold a
	// LEAP_CONNECTION_MESSAGE union, including one LEAP_HAND record;
	// only the leading fields this package reads are given named
	// offsets below.
	connectionMessageSize = 768

	// Offsets within a LEAP_CONNECTION_MESSAGE, matching the layout of
	// LeapC.h's struct (size/type header followed by an event union).
	offsetType  = 4
	offsetHands = offsetType + 4

	// handRecordOffset is where the first LEAP_HAND record starts,
	// relative to the message buffer; this package only ever reads
	// hand 0, matching the original's "first hand wins" behavior.
	handRecordOffset = offsetHands + 4

	// Field offsets within a LEAP_HAND record. No real LeapC.h header
	// is available to this package, so this layout is a best-effort
	// approximation of LEAP_HAND/LEAP_PALM/LEAP_DIGIT/LEAP_BONE: a
	// chirality flag, followed by the palm pose, followed by five
	// digits of four bones each.
	handOffsetChirality     = 0
	handOffsetPalmPosition  = 4
	handOffsetPalmWidth     = 16
	handOffsetPalmNormal    = 20
	handOffsetPalmDirection = 32
	handOffsetDigits        = 44

	boneSize  = 28 // start xyz + end xyz + width, all float32
	digitSize = 4 * boneSize
)

// libraryName picks the platform-appropriate shared library name; the
// SDK installer places it on the library search path on all three
// platforms this package targets.
func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return libraryNameDarwin
	case "windows":
		return libraryNameWindows
	default:
		return libraryNameLinux
	}
}

type connection struct {
	createConnection  func(config uintptr, out *uintptr) int32
	openConnection    func(handle uintptr) int32
	pollConnection    func(handle uintptr, timeoutMS uint32, msg uintptr) int32
	closeConnection   func(handle uintptr)
	destroyConnection func(handle uintptr)
}

func load() (*connection, error) {
	lib, err := purego.Dlopen(libraryName(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("leapmotion: load LeapC: %w", err)
	}

	c := &connection{}
	purego.RegisterLibFunc(&c.createConnection, lib, "LeapCreateConnection")
	purego.RegisterLibFunc(&c.openConnection, lib, "LeapOpenConnection")
	purego.RegisterLibFunc(&c.pollConnection, lib, "LeapPollConnection")
	purego.RegisterLibFunc(&c.closeConnection, lib, "LeapCloseConnection")
	purego.RegisterLibFunc(&c.destroyConnection, lib, "LeapDestroyConnection")
	return c, nil
}

// rawVec3 is a tracking-camera-frame 3-vector, before the axis swap and
// haptic-origin offset toFrame applies.
type rawVec3 struct {
	x, y, z float64
}

// rawBone is one bone of a rawHand's digit, in tracking-camera frame.
type rawBone struct {
	start, end rawVec3
	width      float64
}

// rawHand is the full hand skeleton read out of a LEAP_CONNECTION_MESSAGE
// tracking event, before the axis swap and haptic-origin offset.
type rawHand struct {
	hasHand   bool
	right     bool
	position  rawVec3
	width     float64
	normal    rawVec3
	direction rawVec3
	digits    [5][4]rawBone
}

func rsError(rs int32) error {
	if rs == rsSuccess {
		return nil
	}
	return fmt.Errorf("leapmotion: LeapC returned eLeapRS 0x%x", rs)
}

// swapAxes converts a tracking-camera-frame vector into the engine's
// haptic coordinate frame: y and z are swapped, and the result is
// shifted by the fixed 121mm offset between the tracking camera's
// origin and the haptic emitter's origin.
func swapAxes(v rawVec3) pattern.MAHCoordsConst {
	return pattern.MAHCoordsConst{
		X: v.x,
		Y: -v.z + 121.0,
		Z: v.y,
	}
}

// toFrame converts a raw hand skeleton into the engine's haptic
// coordinate frame, applying swapAxes to every position/direction
// vector it carries.
func toFrame(raw rawHand) tracking.Frame {
	if !raw.hasHand {
		return tracking.Frame{}
	}

	chirality := tracking.ChiralityLeft
	if raw.right {
		chirality = tracking.ChiralityRight
	}

	hand := &tracking.Hand{
		Chirality: chirality,
		Palm: tracking.Palm{
			Position:  swapAxes(raw.position),
			Width:     raw.width,
			Normal:    swapAxes(raw.normal),
			Direction: swapAxes(raw.direction),
		},
	}
	for d := range raw.digits {
		for b := range raw.digits[d] {
			bone := raw.digits[d][b]
			hand.Digits[d].Bones[b] = tracking.Bone{
				Start: swapAxes(bone.start),
				End:   swapAxes(bone.end),
				Width: bone.width,
			}
		}
	}
	return tracking.Frame{Hand: hand}
}

// Run opens a LeapC connection and streams hand-tracking frames to out
// until done is closed or the connection is lost. It blocks on the calling
// goroutine and should be run with runtime.LockOSThread held by its
// caller, matching LeapC's single-polling-thread expectation.
func Run(done <-chan struct{}, out chan<- tracking.Frame) error {
	conn, err := load()
	if err != nil {
		return err
	}

	var handle uintptr
	if rs := conn.createConnection(0, &handle); rs != rsSuccess {
		return rsError(rs)
	}
	if rs := conn.openConnection(handle); rs != rsSuccess {
		return rsError(rs)
	}
	defer conn.closeConnection(handle)
	defer conn.destroyConnection(handle)

	msgBuf := make([]byte, connectionMessageSize)
	msgPtr := uintptr(unsafe.Pointer(&msgBuf[0]))

	for {
		select {
		case <-done:
			return nil
		default:
		}

		rs := conn.pollConnection(handle, pollTimeoutMS, msgPtr)
		if rs == rsTimeout {
			continue
		}
		if err := rsError(rs); err != nil {
			return err
		}

		eventType := readUint32(msgBuf, offsetType)
		if eventType != eventTypeTracking {
			continue
		}

		select {
		case out <- toFrame(parseTrackingEvent(msgBuf)):
		default:
			logrus.Warn("leapmotion: dropped a tracking frame, consumer not keeping up")
		}
	}
}

func readUint32(b []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(b[offset : offset+4])
}

func readFloat32(b []byte, offset int) float64 {
	return float64(math.Float32frombits(readUint32(b, offset)))
}

// readVec3 reads a packed x,y,z float32 triple at offset.
func readVec3(msg []byte, offset int) rawVec3 {
	return rawVec3{
		x: readFloat32(msg, offset),
		y: readFloat32(msg, offset+4),
		z: readFloat32(msg, offset+8),
	}
}

// readBone reads one LEAP_BONE (start, end, width) at offset.
func readBone(msg []byte, offset int) rawBone {
	return rawBone{
		start: readVec3(msg, offset),
		end:   readVec3(msg, offset+12),
		width: readFloat32(msg, offset+24),
	}
}

// parseTrackingEvent reads the first hand's full skeleton out of a
// tracking-event message. When no hand is present it reports hasHand
// false, matching the original's "nHands == 0 means no hand" rule.
func parseTrackingEvent(msg []byte) rawHand {
	nHands := readUint32(msg, offsetHands)
	if nHands == 0 {
		return rawHand{}
	}

	base := handRecordOffset
	hand := rawHand{
		hasHand:   true,
		right:     readUint32(msg, base+handOffsetChirality) != 0,
		position:  readVec3(msg, base+handOffsetPalmPosition),
		width:     readFloat32(msg, base+handOffsetPalmWidth),
		normal:    readVec3(msg, base+handOffsetPalmNormal),
		direction: readVec3(msg, base+handOffsetPalmDirection),
	}
	for d := 0; d < 5; d++ {
		digitOffset := base + handOffsetDigits + d*digitSize
		for b := 0; b < 4; b++ {
			hand.digits[d][b] = readBone(msg, digitOffset+b*boneSize)
		}
	}
	return hand
}
