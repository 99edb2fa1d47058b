package tennis

import (
	"math"
	"math/rand"
	"time"
)

const (
	DefaultWidth  = 960.0
	DefaultHeight = 540.0

	WinScore = 7

	paddleWidth  = 14.0
	paddleHeight = 88.0
	paddleInset  = 28.0
	ballRadius   = 9.0

	minBounceSpeed = 5.0
	maxBounceAngle = math.Pi / 3
)

// Random is the source of serve direction and angle.
type Random interface {
	Float64() float64
}

type Option func(*Engine)

func WithRandom(random Random) Option {
	return func(that *Engine) {
		that.random = random
	}
}

func WithCourt(width, height float64) Option {
	return func(that *Engine) {
		that.width = width
		that.height = height
	}
}

// Engine simulates one tennis match. It is owned by a single loop and is not safe for concurrent use.
type Engine struct {
	width  float64
	height float64

	paddles [2]*Paddle
	ball    *Ball
	inputs  [2]InputState
	scores  [2]int

	status         Status
	winner         *int
	serveDirection Direction

	random Random
}

func NewEngine(opts ...Option) *Engine {
	that := &Engine{
		width:  DefaultWidth,
		height: DefaultHeight,
		status: StatusWaiting,
	}

	for _, opt := range opts {
		opt(that)
	}

	if that.random == nil {
		that.random = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint: gosec // gameplay randomness
	}

	paddleY := that.height/2 - paddleHeight/2
	that.paddles = [2]*Paddle{
		NewPaddle(paddleInset, paddleY, paddleWidth, paddleHeight),
		NewPaddle(that.width-paddleInset-paddleWidth, paddleY, paddleWidth, paddleHeight),
	}
	that.ball = NewBall(that.width/2, that.height/2, ballRadius)

	return that
}

// HandleInput - stores the input of player 0 or 1. Other ids are ignored.
func (that *Engine) HandleInput(playerID int, input InputState) {
	if playerID != 0 && playerID != 1 {
		return
	}

	that.inputs[playerID] = input
}

// Serve - puts the ball back at center court and launches it towards direction.
func (that *Engine) Serve(direction Direction) {
	that.ball.Reset(that.width/2, that.height/2)

	if direction == DirectionRandom {
		direction = DirectionLeft
		if that.random.Float64() > 0.5 {
			direction = DirectionRight
		}
	}

	that.ball.Serve(direction, that.random.Float64())
	that.serveDirection = direction
	that.status = StatusPlaying
}

// Reset - starts a new match and serves immediately.
func (that *Engine) Reset() {
	that.scores = [2]int{}
	that.winner = nil
	that.status = StatusServing

	for _, paddle := range that.paddles {
		paddle.SetY(that.height/2 - paddle.State().Height/2)
		paddle.SetScore(0)
	}

	that.inputs = [2]InputState{}
	that.Serve(DirectionRandom)
}

func (that *Engine) Update(dt float64) {
	if that.status == StatusFinished {
		return
	}

	that.paddles[0].Update(that.inputs[0], that.height, dt)
	that.paddles[1].Update(that.inputs[1], that.height, dt)

	if that.status == StatusServing && that.serveDirection != DirectionRandom {
		that.Serve(that.serveDirection)
		return
	}

	if that.status != StatusPlaying {
		return
	}

	that.ball.Update(dt)
	that.handleWallBounce()
	that.handlePaddleCollisions()
	that.handleScoring()
}

func (that *Engine) State() GameState {
	state := GameState{
		Paddles:        [2]PaddleState{that.paddles[0].State(), that.paddles[1].State()},
		Ball:           that.ball.State(),
		Scores:         that.scores,
		Status:         that.status,
		ServeDirection: that.serveDirection,
	}

	if that.winner != nil {
		winner := *that.winner
		state.Winner = &winner
	}

	return state
}

// Load - replaces the simulated state with a reconciled snapshot.
func (that *Engine) Load(state GameState) {
	for i, paddle := range that.paddles {
		paddle.SetY(state.Paddles[i].Y)
		paddle.SetScore(state.Paddles[i].Score)
	}

	that.ball.load(state.Ball)
	that.scores = state.Scores
	that.status = state.Status
	that.serveDirection = state.ServeDirection
	that.winner = nil

	if state.Winner != nil {
		winner := *state.Winner
		that.winner = &winner
	}
}

func (that *Engine) handleWallBounce() {
	ball := that.ball.State()

	if ball.Y-ball.Radius <= 0 {
		that.ball.SetPosition(ball.X, ball.Radius)
		that.ball.BounceVertical()
		return
	}

	if ball.Y+ball.Radius >= that.height {
		that.ball.SetPosition(ball.X, that.height-ball.Radius)
		that.ball.BounceVertical()
	}
}

func (that *Engine) handlePaddleCollisions() {
	ball := that.ball.State()
	left := that.paddles[0].State()
	right := that.paddles[1].State()

	leftHit := ball.VX < 0 &&
		ball.X-ball.Radius <= left.X+left.Width &&
		ball.Y >= left.Y &&
		ball.Y <= left.Y+left.Height

	if leftHit {
		that.ball.SetPosition(left.X+left.Width+ball.Radius, ball.Y)
		that.reflectFromPaddle(left, DirectionRight)
		return
	}

	rightHit := ball.VX > 0 &&
		ball.X+ball.Radius >= right.X &&
		ball.Y >= right.Y &&
		ball.Y <= right.Y+right.Height

	if rightHit {
		that.ball.SetPosition(right.X-ball.Radius, ball.Y)
		that.reflectFromPaddle(right, DirectionLeft)
	}
}

// reflectFromPaddle - the further from the paddle center the ball lands, the steeper it leaves.
func (that *Engine) reflectFromPaddle(paddle PaddleState, direction Direction) {
	ball := that.ball.State()

	offset := (ball.Y - (paddle.Y + paddle.Height/2)) / (paddle.Height / 2)
	offset = math.Max(-1, math.Min(1, offset))

	speed := math.Max(minBounceSpeed, that.ball.Speed())
	angle := offset * maxBounceAngle

	that.ball.SetVelocity(math.Cos(angle)*speed*float64(direction), math.Sin(angle)*speed)
	that.ball.IncreaseSpeed(ballBounceMultiplier)
}

func (that *Engine) handleScoring() {
	ball := that.ball.State()

	if ball.X+ball.Radius < 0 {
		that.awardPoint(1)
		return
	}

	if ball.X-ball.Radius > that.width {
		that.awardPoint(0)
	}
}

func (that *Engine) awardPoint(player int) {
	that.scores[player]++
	that.paddles[player].AddPoint()
	that.ball.Reset(that.width/2, that.height/2)

	if that.scores[player] >= WinScore {
		that.status = StatusFinished
		that.winner = &player
		return
	}

	// the ball goes back towards the side that lost the point
	that.serveDirection = DirectionRight
	if player == 1 {
		that.serveDirection = DirectionLeft
	}
	that.status = StatusServing
}
