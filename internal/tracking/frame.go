// Package tracking defines the hand-position data exchanged between a
// hand-tracking source (LeapMotion/Ultraleap over a dynamically loaded
// SDK, or a synthetic mock) and the pattern-evaluation worker.
package tracking

import "github.com/cbegin/adaptics-engine-go/internal/pattern"

// Chirality identifies which hand a Frame's skeleton belongs to.
type Chirality int

const (
	ChiralityLeft Chirality = iota
	ChiralityRight
)

func (c Chirality) String() string {
	if c == ChiralityRight {
		return "right"
	}
	return "left"
}

func (c Chirality) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Palm is the tracked hand's palm pose.
type Palm struct {
	Position  pattern.MAHCoordsConst `json:"position"`
	Width     float64                `json:"width"`
	Normal    pattern.MAHCoordsConst `json:"normal"`
	Direction pattern.MAHCoordsConst `json:"direction"`
}

// Bone is one of a digit's four bones.
type Bone struct {
	Start pattern.MAHCoordsConst `json:"start"`
	End   pattern.MAHCoordsConst `json:"end"`
	Width float64                `json:"width"`
}

// Digit is one of a hand's five fingers, metacarpal through distal.
type Digit struct {
	Bones [4]Bone `json:"bones"`
}

// Hand is a full tracked-hand skeleton: chirality, palm pose, and the
// five digits' bones.
type Hand struct {
	Chirality Chirality `json:"chirality"`
	Palm      Palm      `json:"palm"`
	Digits    [5]Digit  `json:"digits"`
}

// Frame is one sample of hand-tracking data. Hand is nil when no hand is
// currently visible to the tracker.
type Frame struct {
	Hand *Hand `json:"hand"`
}
