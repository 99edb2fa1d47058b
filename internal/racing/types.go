package racing

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

type InputState struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

type Car struct {
	ID           int     `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Angle        float64 `json:"angle"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
	Rotation     float64 `json:"rotation"`
	Lap          int     `json:"lap"`
	Checkpoints  []int   `json:"checkpoints"`
}

func (that Car) clone() Car {
	that.Checkpoints = append(make([]int, 0, len(that.Checkpoints)), that.Checkpoints...)
	return that
}

type BoundaryKind string

const (
	BoundaryOuter BoundaryKind = "outer"
	BoundaryInner BoundaryKind = "inner"
)

type Boundary struct {
	X       float64      `json:"x"`
	Y       float64      `json:"y"`
	RadiusX float64      `json:"radius_x"`
	RadiusY float64      `json:"radius_y"`
	Kind    BoundaryKind `json:"kind"`
}

type Checkpoint struct {
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Contains - reports whether the point lies within the checkpoint radius.
func (that Checkpoint) Contains(x, y float64) bool {
	dx := that.X - x
	dy := that.Y - y

	return dx*dx+dy*dy <= that.Radius*that.Radius
}

type StartPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

type Track struct {
	Width          float64         `json:"width"`
	Height         float64         `json:"height"`
	Boundaries     []Boundary      `json:"boundaries"`
	Checkpoints    []Checkpoint    `json:"checkpoints"`
	StartPositions []StartPosition `json:"start_positions"`
}

type GameState struct {
	Cars   []Car  `json:"cars"`
	Track  Track  `json:"track"`
	Winner *int   `json:"winner"`
	Status Status `json:"status"`
}

func (that GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that GameState) IsRunning() bool {
	return that.Status == StatusRunning
}
