package mot

import (
	"math"
)

// Box is an axis-aligned bounding box in [x1, y1, x2, y2] order.
// Coordinates are either normalized to [0, 1] or in pixels, depending on the detector.
type Box [4]float64

// NewBox creates box from its corners
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{x1, y1, x2, y2}
}

// Width returns x2-x1
func (box Box) Width() float64 {
	return box[2] - box[0]
}

// Height returns y2-y1
func (box Box) Height() float64 {
	return box[3] - box[1]
}

// Add returns box shifted by k times the per-coordinate velocity
func (box Box) Add(velocity [4]float64, k float64) Box {
	return Box{
		box[0] + velocity[0]*k,
		box[1] + velocity[1]*k,
		box[2] + velocity[2]*k,
		box[3] + velocity[3]*k,
	}
}

// Clamp limits every coordinate to [lo, hi]
func (box Box) Clamp(lo, hi float64) Box {
	for i := range box {
		box[i] = math.Min(hi, math.Max(lo, box[i]))
	}
	return box
}

// ClampXY limits x coordinates to [0, maxX] and y coordinates to [0, maxY]
func (box Box) ClampXY(maxX, maxY float64) Box {
	box[0] = math.Min(maxX, math.Max(0, box[0]))
	box[2] = math.Min(maxX, math.Max(0, box[2]))
	box[1] = math.Min(maxY, math.Max(0, box[1]))
	box[3] = math.Min(maxY, math.Max(0, box[3]))
	return box
}

// Round rounds every coordinate to the given number of decimals
func (box Box) Round(decimals int) Box {
	p := math.Pow(10, float64(decimals))
	for i := range box {
		box[i] = math.Round(box[i]*p) / p
	}
	return box
}

// Point is a 2-D point
type Point struct {
	X float64
	Y float64
}

// Area returns the geometric mean of width and height: sqrt(w*h).
// It is a relative size scalar, not a true area.
func Area(box Box) float64 {
	return math.Sqrt(box.Width() * box.Height())
}

// Ratio returns aspect ratio w/h. Zero height gives NaN or Inf.
func Ratio(box Box) float64 {
	return box.Width() / box.Height()
}

// Center returns center of the box
func Center(box Box) Point {
	return Point{
		X: (box[2] + box[0]) / 2.0,
		Y: (box[3] + box[1]) / 2.0,
	}
}

// CenterDist returns euclidean distance between centers of two boxes
func CenterDist(box1, box2 Box) float64 {
	return euclideanDistance(Center(box1), Center(box2))
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

// IoU calculates Intersection over Union between one box and each of the others.
func IoU(box Box, others []Box) []float64 {
	ious := make([]float64, len(others))
	boxArea := box.Width() * box.Height()
	for i, other := range others {
		xA := math.Max(box[0], other[0])
		yA := math.Max(box[1], other[1])
		xB := math.Min(box[2], other[2])
		yB := math.Min(box[3], other[3])
		interArea := math.Max(0, xB-xA) * math.Max(0, yB-yA)
		if interArea == 0 {
			continue
		}
		otherArea := other.Width() * other.Height()
		ious[i] = interArea / (boxArea + otherArea - interArea)
	}
	return ious
}
