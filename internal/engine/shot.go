package engine

import (
	"image"
	"math"
)

// Offsets of the launch reference point inside the sling box, both as a
// fraction of the box width.
const (
	slingXOffset = 0.5
	slingYOffset = 0.65
)

// NoReference means the sling could not be located in the current frame.
var NoReference = image.Pt(-1, -1)

type Shot struct {
	Origin  image.Point
	DX      int
	DY      int
	Drag    int // drag duration, always 0 for protocol shots
	TapTime int // milliseconds after release
}

func NewShot(origin image.Point, dx, dy, tapTime int) Shot {
	return Shot{Origin: origin, DX: dx, DY: dy, TapTime: tapTime}
}

// Release is where the drag ends and the bird is let go.
func (s Shot) Release() image.Point {
	return s.Origin.Add(image.Pt(s.DX, s.DY))
}

func ReferencePoint(sling image.Rectangle) image.Point {
	if sling.Empty() {
		return NoReference
	}
	w := float64(sling.Dx())
	return image.Pt(
		int(float64(sling.Min.X)+slingXOffset*w),
		int(float64(sling.Min.Y)+slingYOffset*w),
	)
}

// PolarToCartesian converts a radius and an angle in hundredths of a degree
// into a drag displacement. The x axis is mirrored because the bird is pulled
// away from the direction it should fly.
func PolarToCartesian(r, thetaHundredths int) (dx, dy int) {
	theta := float64(thetaHundredths) / 100.0 * math.Pi / 180.0
	radius := float64(r)
	dx = roundHalfUp(radius * math.Cos(theta) * -1)
	dy = roundHalfUp(radius * math.Sin(theta))
	return dx, dy
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// ShotCommand is a shooting request as received from the client. For polar
// shots A is the radius and B the angle in hundredths of a degree; otherwise
// A and B are the drag displacement.
type ShotCommand struct {
	Polar   bool
	Safe    bool
	A       int
	B       int
	TapTime int
}

func (c ShotCommand) Displacement() (dx, dy int) {
	if c.Polar {
		return PolarToCartesian(c.A, c.B)
	}
	return c.A, c.B
}
