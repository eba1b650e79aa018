package mapping

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/smilesmith9879/new-car/pose"
)

// Point is one mapped 3D point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Location is a named position on the map.
type Location struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

// Map is the in-memory map model: surveyed points, the recorded vehicle
// trajectory, and named locations keyed by normalized name.
type Map struct {
	Name       string              `json:"name"`
	Created    time.Time           `json:"created"`
	Points     []Point             `json:"points"`
	Trajectory []pose.Pose         `json:"trajectory"`
	Locations  map[string]Location `json:"locations"`
}

// NewMap returns an empty named map stamped with the current time.
func NewMap(name string) *Map {
	return &Map{
		Name:      name,
		Created:   time.Now().UTC(),
		Locations: make(map[string]Location),
	}
}

// Clone returns a deep copy. Callers receive snapshots, never the live
// model the mapping worker appends to.
func (m *Map) Clone() *Map {
	clone := &Map{
		Name:       m.Name,
		Created:    m.Created,
		Points:     make([]Point, len(m.Points)),
		Trajectory: make([]pose.Pose, len(m.Trajectory)),
		Locations:  make(map[string]Location, len(m.Locations)),
	}
	copy(clone.Points, m.Points)
	copy(clone.Trajectory, m.Trajectory)
	for k, v := range m.Locations {
		clone.Locations[k] = v
	}
	return clone
}

// NormalizeKey lowercases a location name and replaces spaces with
// underscores, so "Living Room" and "living room" address the same entry.
func NormalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Survey room dimensions and generation parameters.
const (
	surveyWidth    = 500.0
	surveyHeight   = 400.0
	surveyWallStep = 10.0
	surveyFeatures = 100
	surveyTrackLen = 100
)

// survey is a precomputed mapping run: the full point cloud and the
// trajectory the mapping worker replays batch by batch.
type survey struct {
	points     []Point
	trajectory []pose.Pose
}

// generateSurvey builds a rectangular room: wall points along the
// perimeter, random feature points inside, and a circular trajectory
// through the middle with the orientation following the direction of
// travel.
func generateSurvey(rng *rand.Rand) survey {
	var points []Point
	for x := 0.0; x < surveyWidth; x += surveyWallStep {
		points = append(points, Point{X: x, Y: 0}, Point{X: x, Y: surveyHeight})
	}
	for y := 0.0; y < surveyHeight; y += surveyWallStep {
		points = append(points, Point{X: 0, Y: y}, Point{X: surveyWidth, Y: y})
	}
	for i := 0; i < surveyFeatures; i++ {
		points = append(points, Point{
			X: surveyWallStep + rng.Float64()*(surveyWidth-2*surveyWallStep),
			Y: surveyWallStep + rng.Float64()*(surveyHeight-2*surveyWallStep),
		})
	}

	trajectory := make([]pose.Pose, 0, surveyTrackLen)
	for t := 0; t < surveyTrackLen; t++ {
		ft := float64(t) / 10
		next := float64(t+1) / 10
		trajectory = append(trajectory, pose.Pose{
			X: surveyWidth/2 + (surveyWidth/3)*math.Cos(ft),
			Y: surveyHeight/2 + (surveyHeight/3)*math.Sin(ft),
			Orientation: math.Atan2(
				math.Sin(next)-math.Sin(ft),
				math.Cos(next)-math.Cos(ft),
			) * 180 / math.Pi,
		})
	}

	return survey{points: points, trajectory: trajectory}
}
