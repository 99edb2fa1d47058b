package tennis

import "math"

const (
	ballInitialSpeed     = 5.0
	ballMaxSpeed         = 12.0
	ballBounceMultiplier = 1.06
	ballServeSpread      = math.Pi / 3
)

type Ball struct {
	x      float64
	y      float64
	vx     float64
	vy     float64
	radius float64
}

func NewBall(x, y, radius float64) *Ball {
	return &Ball{
		x:      x,
		y:      y,
		radius: radius,
	}
}

// Serve - launches the ball at the initial speed. spread in [0, 1) maps onto ±30° from horizontal.
func (that *Ball) Serve(direction Direction, spread float64) {
	angle := spread*ballServeSpread - ballServeSpread/2
	that.vx = math.Cos(angle) * ballInitialSpeed * float64(direction)
	that.vy = math.Sin(angle) * ballInitialSpeed
}

func (that *Ball) Reset(x, y float64) {
	that.x = x
	that.y = y
	that.vx = 0
	that.vy = 0
}

func (that *Ball) Update(dt float64) {
	scale := dt * 60
	that.x += that.vx * scale
	that.y += that.vy * scale
}

func (that *Ball) BounceVertical() {
	that.vy = -that.vy
}

func (that *Ball) BounceHorizontal() {
	that.vx = -that.vx
}

func (that *Ball) SetVelocity(vx, vy float64) {
	that.vx = vx
	that.vy = vy
}

func (that *Ball) SetPosition(x, y float64) {
	that.x = x
	that.y = y
}

func (that *Ball) Speed() float64 {
	return math.Hypot(that.vx, that.vy)
}

// IncreaseSpeed - scales the velocity by multiplier keeping its heading, capped at the max speed.
func (that *Ball) IncreaseSpeed(multiplier float64) {
	next := math.Min(ballMaxSpeed, that.Speed()*multiplier)
	if next == 0 {
		return
	}

	angle := math.Atan2(that.vy, that.vx)
	that.vx = math.Cos(angle) * next
	that.vy = math.Sin(angle) * next
}

func (that *Ball) State() BallState {
	return BallState{
		X:      that.x,
		Y:      that.y,
		VX:     that.vx,
		VY:     that.vy,
		Radius: that.radius,
	}
}

func (that *Ball) load(state BallState) {
	that.x = state.X
	that.y = state.Y
	that.vx = state.VX
	that.vy = state.VY
}
