package tennis

const paddleSpeed = 6.0

type Paddle struct {
	x      float64
	y      float64
	width  float64
	height float64
	score  int
}

func NewPaddle(x, y, width, height float64) *Paddle {
	return &Paddle{
		x:      x,
		y:      y,
		width:  width,
		height: height,
	}
}

func (that *Paddle) SetY(y float64) {
	that.y = y
}

func (that *Paddle) AddPoint() {
	that.score++
}

func (that *Paddle) SetScore(score int) {
	that.score = score
}

// Update - moves the paddle for one frame of input and keeps it on the court.
func (that *Paddle) Update(input InputState, courtHeight, dt float64) {
	scale := dt * 60

	if input.Up {
		that.y -= paddleSpeed * scale
	}
	if input.Down {
		that.y += paddleSpeed * scale
	}

	if that.y < 0 {
		that.y = 0
	}

	if maxY := courtHeight - that.height; that.y > maxY {
		that.y = maxY
	}
}

func (that *Paddle) State() PaddleState {
	return PaddleState{
		X:      that.x,
		Y:      that.y,
		Width:  that.width,
		Height: that.height,
		Score:  that.score,
	}
}
