package racing

import "math"

const (
	trackWidth = 100.0

	centerX      = 400.0
	centerY      = 300.0
	outerRadiusX = 320.0
	outerRadiusY = 230.0
	innerRadiusX = outerRadiusX - trackWidth
	innerRadiusY = outerRadiusY - trackWidth

	checkpointRadius = 26.0
	startOffset      = 26.0
)

var (
	midlineX = (outerRadiusX + innerRadiusX) / 2
	midlineY = (outerRadiusY + innerRadiusY) / 2

	// checkpoints run bottom, right, top, left around the ring midline.
	checkpoints = []Checkpoint{
		{Index: 0, X: centerX, Y: centerY + midlineY, Radius: checkpointRadius},
		{Index: 1, X: centerX + midlineX, Y: centerY, Radius: checkpointRadius},
		{Index: 2, X: centerX, Y: centerY - midlineY, Radius: checkpointRadius},
		{Index: 3, X: centerX - midlineX, Y: centerY, Radius: checkpointRadius},
	}

	outerBoundary = Boundary{X: centerX, Y: centerY, RadiusX: outerRadiusX, RadiusY: outerRadiusY, Kind: BoundaryOuter}
	innerBoundary = Boundary{X: centerX, Y: centerY, RadiusX: innerRadiusX, RadiusY: innerRadiusY, Kind: BoundaryInner}

	startPositions = []StartPosition{
		{X: centerX - startOffset, Y: centerY + midlineY, Angle: -math.Pi / 2},
		{X: centerX + startOffset, Y: centerY + midlineY, Angle: -math.Pi / 2},
	}
)

// DefaultTrack - returns a copy of the oval every race is driven on.
func DefaultTrack() Track {
	return Track{
		Width:          800,
		Height:         600,
		Boundaries:     []Boundary{outerBoundary, innerBoundary},
		Checkpoints:    append([]Checkpoint(nil), checkpoints...),
		StartPositions: append([]StartPosition(nil), startPositions...),
	}
}

// InEllipse - reports whether (x, y) lies inside or on the axis-aligned ellipse.
func InEllipse(x, y, cx, cy, rx, ry float64) bool {
	nx := (x - cx) / rx
	ny := (y - cy) / ry

	return nx*nx+ny*ny <= 1
}

// IsOnTrack - true inside the outer ellipse and strictly outside the inner one.
func IsOnTrack(x, y float64) bool {
	insideOuter := InEllipse(x, y, outerBoundary.X, outerBoundary.Y, outerBoundary.RadiusX, outerBoundary.RadiusY)
	insideInner := InEllipse(x, y, innerBoundary.X, innerBoundary.Y, innerBoundary.RadiusX, innerBoundary.RadiusY)

	return insideOuter && !insideInner
}

// CheckpointAt - looks a checkpoint up by index, wrapping in both directions.
func CheckpointAt(index int) Checkpoint {
	count := len(checkpoints)
	return checkpoints[((index%count)+count)%count]
}

func CheckpointCount() int {
	return len(checkpoints)
}
