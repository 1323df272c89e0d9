package schemas

// -- Geometry Schemas --

// Rect is an element's bounding box in viewport CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the viewport centre of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// Point is an (x, y) pair. Whether it is viewport or document relative
// depends on where it appears.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the component-wise sum.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// WindowMetrics is the live viewport state used to translate coordinates.
type WindowMetrics struct {
	ScrollX          float64 `json:"scrollX"`
	ScrollY          float64 `json:"scrollY"`
	InnerWidth       float64 `json:"innerWidth"`
	InnerHeight      float64 `json:"innerHeight"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// Scroll returns the current scroll offset as a point.
func (w WindowMetrics) Scroll() Point {
	return Point{X: w.ScrollX, Y: w.ScrollY}
}
