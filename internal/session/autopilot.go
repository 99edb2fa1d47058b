package session

import (
	"math"

	"github.com/rocketscienceinc/arcade-backend/internal/racing"
	"github.com/rocketscienceinc/arcade-backend/internal/tennis"
)

const (
	// paddleDeadZone keeps the paddle from jittering around the ball height.
	paddleDeadZone = 10.0

	// waypointLead is how far ahead along the ring midline the car aims, in radians.
	waypointLead   = 0.45
	steerTolerance = 0.05
	cornerAngle    = 0.6
	cornerSpeed    = 4.5
)

// TennisAutopilot - moves the paddle of playerID towards the ball height.
func TennisAutopilot(state tennis.GameState, playerID int) tennis.InputState {
	if playerID != 0 && playerID != 1 {
		return tennis.InputState{}
	}

	paddle := state.Paddles[playerID]
	center := paddle.Y + paddle.Height/2

	switch {
	case state.Ball.Y < center-paddleDeadZone:
		return tennis.InputState{Up: true}
	case state.Ball.Y > center+paddleDeadZone:
		return tennis.InputState{Down: true}
	default:
		return tennis.InputState{}
	}
}

// RacingAutopilot - follows the midline of the ring in checkpoint order, lifting off in sharp turns.
func RacingAutopilot(state racing.GameState, playerID int) racing.InputState {
	car, ok := findCar(state.Cars, playerID)
	if !ok || state.IsFinished() {
		return racing.InputState{}
	}

	cx, cy, rx, ry, ok := midline(state.Track)
	if !ok {
		return racing.InputState{Up: true}
	}

	// checkpoints run bottom, right, top, left: the parametric angle decreases along the race
	position := math.Atan2((car.Y-cy)/ry, (car.X-cx)/rx)
	target := position - waypointLead
	targetX := cx + rx*math.Cos(target)
	targetY := cy + ry*math.Sin(target)

	diff := normalizeAngle(math.Atan2(targetY-car.Y, targetX-car.X) - car.Angle)

	input := racing.InputState{
		Up:    math.Abs(diff) < cornerAngle || car.Velocity < cornerSpeed,
		Right: diff > steerTolerance,
		Left:  diff < -steerTolerance,
	}

	return input
}

func findCar(cars []racing.Car, playerID int) (racing.Car, bool) {
	for _, car := range cars {
		if car.ID == playerID {
			return car, true
		}
	}

	return racing.Car{}, false
}

// midline - the ellipse halfway between the outer and inner boundary.
func midline(track racing.Track) (cx, cy, rx, ry float64, ok bool) {
	var outer, inner *racing.Boundary

	for i := range track.Boundaries {
		switch track.Boundaries[i].Kind {
		case racing.BoundaryOuter:
			outer = &track.Boundaries[i]
		case racing.BoundaryInner:
			inner = &track.Boundaries[i]
		}
	}

	if outer == nil || inner == nil {
		return 0, 0, 0, 0, false
	}

	return outer.X, outer.Y, (outer.RadiusX + inner.RadiusX) / 2, (outer.RadiusY + inner.RadiusY) / 2, true
}

func normalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}

	for angle < -math.Pi {
		angle += 2 * math.Pi
	}

	return angle
}
