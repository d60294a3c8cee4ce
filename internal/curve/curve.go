package curve

import (
	"codeberg.org/mutker/amdfanctl/internal/errors"
)

// MinimumSpeed is the lowest fan speed percentage the amdgpu driver
// accepts reliably. Values below this are rejected or misbehave.
const MinimumSpeed = 4.0

// Point is one control point of a fan curve: the fan speed percentage
// to apply at a given temperature in degrees Celsius.
type Point struct {
	Temperature float64
	Speed       float64
}

// Curve is an immutable, validated temperature-to-speed mapping.
// All invariants are enforced once at construction.
type Curve struct {
	points []Point
}

// New validates the given control points and builds a curve.
// Validation order matters: the first violated invariant determines
// the returned error code.
func New(points []Point) (*Curve, error) {
	errFactory := errors.New()

	if len(points) == 0 {
		return nil, errFactory.New(ErrEmptyCurve)
	}

	for _, p := range points {
		if p.Speed < 0 {
			return nil, errFactory.WithData(ErrNegativeSpeed, p)
		}
	}

	for _, p := range points {
		if p.Speed > 100 {
			return nil, errFactory.WithData(ErrSpeedAboveMax, p)
		}
	}

	for i := 1; i < len(points); i++ {
		if points[i].Temperature <= points[i-1].Temperature {
			return nil, errFactory.WithData(ErrTempsNotAscending, points[i])
		}
	}

	for i := 1; i < len(points); i++ {
		if points[i].Speed < points[i-1].Speed {
			return nil, errFactory.WithData(ErrSpeedsDecreasing, points[i])
		}
	}

	// Speeds are non-decreasing at this point, so the first point holds the minimum
	if points[0].Speed < MinimumSpeed {
		return nil, errFactory.WithData(ErrSpeedBelowFloor, points[0])
	}

	c := &Curve{points: make([]Point, len(points))}
	copy(c.points, points)

	return c, nil
}

// NewFromMatrix builds a curve from configuration rows of the form
// [temperature, speed].
func NewFromMatrix(matrix [][]float64) (*Curve, error) {
	errFactory := errors.New()

	points := make([]Point, 0, len(matrix))
	for _, row := range matrix {
		if len(row) != 2 {
			return nil, errFactory.WithData(ErrMalformedPoint, row)
		}
		points = append(points, Point{Temperature: row[0], Speed: row[1]})
	}

	return New(points)
}

// Speed returns the fan speed percentage for the given temperature,
// linearly interpolated between the two surrounding control points.
// Temperatures outside the curve's domain clamp to the boundary speeds.
func (c *Curve) Speed(temperature float64) float64 {
	first := c.points[0]
	if temperature <= first.Temperature {
		return first.Speed
	}

	last := c.points[len(c.points)-1]
	if temperature >= last.Temperature {
		return last.Speed
	}

	for i := 1; i < len(c.points); i++ {
		p0, p1 := c.points[i-1], c.points[i]
		if temperature <= p1.Temperature {
			ratio := (temperature - p0.Temperature) / (p1.Temperature - p0.Temperature)

			return p0.Speed + ratio*(p1.Speed-p0.Speed)
		}
	}

	return last.Speed
}

// Points returns a copy of the curve's control points.
func (c *Curve) Points() []Point {
	points := make([]Point, len(c.points))
	copy(points, c.points)

	return points
}
