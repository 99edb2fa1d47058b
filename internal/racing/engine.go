package racing

import "math"

const (
	TargetLaps = 3

	accelerationPerFrame = 0.5
	brakePerFrame        = 0.35
	maxForwardSpeed      = 8.0
	maxReverseSpeed      = -4.0
	frictionPerFrame     = 0.98
	steeringPerFrame     = 3 * math.Pi / 180
	turnThreshold        = 0.08
	driftSteerFactor     = 3.5
	driftFactor          = 0.12
	collisionRadius      = 14.0
	wallBounce           = -0.35
	bumpDamping          = 0.7
)

func newCar(id int) Car {
	spawn := startPositions[0]
	if id >= 0 && id < len(startPositions) {
		spawn = startPositions[id]
	}

	return Car{
		ID:          id,
		X:           spawn.X,
		Y:           spawn.Y,
		Angle:       spawn.Angle,
		Checkpoints: []int{},
	}
}

// Engine simulates one two-car race. It is owned by a single loop and is not safe for concurrent use.
type Engine struct {
	cars   []Car
	track  Track
	winner *int
	status Status
	inputs map[int]InputState
}

func NewEngine() *Engine {
	that := &Engine{}
	that.Reset()

	return that
}

// HandleInput - stores the latest input of a player. The first input starts the race.
func (that *Engine) HandleInput(playerID int, input InputState) {
	that.inputs[playerID] = input

	if that.status == StatusWaiting {
		that.status = StatusRunning
	}
}

func (that *Engine) Update(dt float64) {
	if that.status != StatusRunning {
		return
	}

	frameScale := dt * 60

	for i := range that.cars {
		car := &that.cars[i]

		that.updateCar(car, that.inputs[car.ID], frameScale)
		that.updateCheckpointProgress(car)

		if car.Lap >= TargetLaps && that.winner == nil {
			winner := car.ID
			that.winner = &winner
			that.status = StatusFinished
		}
	}

	that.resolveCarCollisions()
}

// Reset - puts fresh cars on the grid and waits for the first input.
func (that *Engine) Reset() {
	that.cars = []Car{newCar(0), newCar(1)}
	that.track = DefaultTrack()
	that.winner = nil
	that.status = StatusWaiting
	that.inputs = make(map[int]InputState)
}

func (that *Engine) State() GameState {
	state := GameState{
		Cars:   make([]Car, len(that.cars)),
		Track:  that.track,
		Status: that.status,
	}

	for i, car := range that.cars {
		state.Cars[i] = car.clone()
	}

	state.Track.Boundaries = append([]Boundary(nil), that.track.Boundaries...)
	state.Track.Checkpoints = append([]Checkpoint(nil), that.track.Checkpoints...)
	state.Track.StartPositions = append([]StartPosition(nil), that.track.StartPositions...)

	if that.winner != nil {
		winner := *that.winner
		state.Winner = &winner
	}

	return state
}

// Load - replaces cars, winner and status with a reconciled snapshot. Inputs are kept.
func (that *Engine) Load(state GameState) {
	that.cars = make([]Car, len(state.Cars))
	for i, car := range state.Cars {
		that.cars[i] = car.clone()
	}

	that.status = state.Status
	that.winner = nil

	if state.Winner != nil {
		winner := *state.Winner
		that.winner = &winner
	}
}

// CurrentCheckpoint - index of the checkpoint the player has to reach next, 0 for unknown players.
func (that *Engine) CurrentCheckpoint(playerID int) int {
	if playerID < 0 || playerID >= len(that.cars) {
		return 0
	}

	return CheckpointAt(len(that.cars[playerID].Checkpoints)).Index
}

func (that *Engine) updateCar(car *Car, input InputState, frameScale float64) {
	speedRatio := math.Min(1, math.Abs(car.Velocity)/maxForwardSpeed)
	steerStrength := steeringPerFrame * frameScale * (0.35 + speedRatio*0.65)

	turn := 0.0
	if input.Left {
		turn--
	}
	if input.Right {
		turn++
	}

	switch {
	case input.Up:
		car.Acceleration = accelerationPerFrame * frameScale
	case input.Down:
		car.Acceleration = -brakePerFrame * frameScale
	default:
		car.Acceleration = 0
	}

	car.Velocity += car.Acceleration
	car.Velocity *= math.Pow(frictionPerFrame, frameScale)
	car.Velocity = math.Max(maxReverseSpeed, math.Min(maxForwardSpeed, car.Velocity))

	car.Rotation = turn * steerStrength
	if math.Abs(car.Velocity) > turnThreshold {
		car.Angle += car.Rotation
	}

	// the car slides a little towards where it is steering
	driftAngle := car.Angle + car.Rotation*driftSteerFactor
	driftScale := math.Min(1, math.Abs(car.Velocity)/maxForwardSpeed) * driftFactor

	nextX := car.X + math.Cos(car.Angle)*car.Velocity + math.Cos(driftAngle)*driftScale*car.Velocity
	nextY := car.Y + math.Sin(car.Angle)*car.Velocity + math.Sin(driftAngle)*driftScale*car.Velocity

	if IsOnTrack(nextX, nextY) {
		car.X = nextX
		car.Y = nextY
		return
	}

	car.Velocity *= wallBounce
}

// updateCheckpointProgress - only the first checkpoint in range is considered, out-of-order ones are ignored.
func (that *Engine) updateCheckpointProgress(car *Car) {
	for _, checkpoint := range that.track.Checkpoints {
		if !checkpoint.Contains(car.X, car.Y) {
			continue
		}

		visited := len(car.Checkpoints)

		switch {
		case visited == 0 && checkpoint.Index == 0:
			car.Checkpoints = append(car.Checkpoints, 0)
		case visited > 0 && checkpoint.Index == visited:
			car.Checkpoints = append(car.Checkpoints, checkpoint.Index)
		case visited == len(that.track.Checkpoints) && checkpoint.Index == 0:
			car.Lap++
			car.Checkpoints = []int{0}
		}

		return
	}
}

func (that *Engine) resolveCarCollisions() {
	if len(that.cars) < 2 {
		return
	}

	carA := &that.cars[0]
	carB := &that.cars[1]

	dx := carB.X - carA.X
	dy := carB.Y - carA.Y
	distance := math.Hypot(dx, dy)
	minDistance := collisionRadius * 2

	if distance >= minDistance || distance == 0 {
		return
	}

	overlap := minDistance - distance
	nx := dx / distance
	ny := dy / distance

	// a push that would leave the ring is dropped for that car only
	pushCar(carA, -nx*overlap*0.5, -ny*overlap*0.5)
	pushCar(carB, nx*overlap*0.5, ny*overlap*0.5)

	carA.Velocity, carB.Velocity = carB.Velocity*bumpDamping, carA.Velocity*bumpDamping
}

func pushCar(car *Car, dx, dy float64) {
	if !IsOnTrack(car.X+dx, car.Y+dy) {
		return
	}

	car.X += dx
	car.Y += dy
}
