package tennis

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusServing  Status = "serving"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Direction is the horizontal sign of a serve. DirectionRandom lets the engine pick.
type Direction int

const (
	DirectionLeft   Direction = -1
	DirectionRandom Direction = 0
	DirectionRight  Direction = 1
)

type InputState struct {
	Up   bool `json:"up"`
	Down bool `json:"down"`
}

type BallState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

type PaddleState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Score  int     `json:"score"`
}

type GameState struct {
	Paddles        [2]PaddleState `json:"paddles"`
	Ball           BallState      `json:"ball"`
	Scores         [2]int         `json:"scores"`
	Status         Status         `json:"status"`
	Winner         *int           `json:"winner"`
	ServeDirection Direction      `json:"serve_direction"`
}

func (that GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that GameState) IsPlaying() bool {
	return that.Status == StatusPlaying
}
