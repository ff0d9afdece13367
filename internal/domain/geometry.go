package domain

// GeometryKind enumerates the shapes the core moves between recommenders,
// the store, and product output. Spatial predicates live outside the core;
// these types only carry coordinates.
type GeometryKind string

const (
	GeometryPolygon      GeometryKind = "polygon"
	GeometryMultiPolygon GeometryKind = "multipolygon"
	GeometryLine         GeometryKind = "line"
	GeometryPoint        GeometryKind = "point"
)

// Coord is a [lon, lat] pair in decimal degrees, WGS-84.
type Coord [2]float64

// Lon returns the longitude component.
func (c Coord) Lon() float64 { return c[0] }

// Lat returns the latitude component.
func (c Coord) Lat() float64 { return c[1] }

// Ring is an ordered vertex list. Polygon rings are stored closed: the first
// vertex is repeated as the last.
type Ring []Coord

// Closed reports whether the ring's last vertex repeats its first.
func (r Ring) Closed() bool {
	return len(r) >= 2 && r[0] == r[len(r)-1]
}

// Geometry is one geometry collection attached to an event. Exactly one of
// the part fields is populated according to Kind:
//
//   - polygon: Rings holds one outer ring (holes unsupported)
//   - multipolygon: Rings holds one outer ring per part
//   - line: Line holds the vertex sequence
//   - point: Point holds the single coordinate
type Geometry struct {
	Kind  GeometryKind `json:"kind"`
	Rings []Ring       `json:"rings,omitempty"`
	Line  []Coord      `json:"line,omitempty"`
	Point Coord        `json:"point,omitempty"`
}

// Copy returns a deep copy.
func (g Geometry) Copy() Geometry {
	dup := g
	if g.Rings != nil {
		dup.Rings = make([]Ring, len(g.Rings))
		for i, r := range g.Rings {
			ring := make(Ring, len(r))
			copy(ring, r)
			dup.Rings[i] = ring
		}
	}
	if g.Line != nil {
		dup.Line = make([]Coord, len(g.Line))
		copy(dup.Line, g.Line)
	}
	return dup
}
