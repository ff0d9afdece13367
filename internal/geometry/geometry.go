// Package geometry converts between in-memory event geometries and the
// persisted coordinate-pair representation used in store files and product
// output. It deliberately knows nothing about spatial predicates.
package geometry

import (
	"fmt"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Shape is the serialized form of one geometry part: a flat list of
// [lon, lat] pairs. Polygon shapes omit the ring-closing vertex on the wire;
// ToShapeList strips it and FromShapeList restores it.
type Shape struct {
	ShapeType string         `json:"shape_type"` // "polygon", "line", or "point"
	Include   bool           `json:"include"`    // false marks exclusion holes, unused by the core
	Points    []domain.Coord `json:"points"`
}

const (
	shapePolygon = "polygon"
	shapeLine    = "line"
	shapePoint   = "point"
)

// ToShapeList serializes a geometry to shapes, one per part. Multipolygons
// produce one polygon shape per outer ring.
func ToShapeList(g *domain.Geometry) ([]Shape, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", domain.ErrInvalidGeometry)
	}

	switch g.Kind {
	case domain.GeometryPolygon, domain.GeometryMultiPolygon:
		if len(g.Rings) == 0 {
			return nil, fmt.Errorf("%w: %s without rings", domain.ErrInvalidGeometry, g.Kind)
		}
		shapes := make([]Shape, 0, len(g.Rings))
		for i, ring := range g.Rings {
			if len(ring) < 4 || !ring.Closed() {
				return nil, fmt.Errorf("%w: ring %d is not closed", domain.ErrInvalidGeometry, i)
			}
			pts := make([]domain.Coord, len(ring)-1)
			copy(pts, ring[:len(ring)-1]) // drop the closing vertex
			shapes = append(shapes, Shape{ShapeType: shapePolygon, Include: true, Points: pts})
		}
		return shapes, nil

	case domain.GeometryLine:
		if len(g.Line) < 2 {
			return nil, fmt.Errorf("%w: line needs at least two vertices", domain.ErrInvalidGeometry)
		}
		pts := make([]domain.Coord, len(g.Line))
		copy(pts, g.Line)
		return []Shape{{ShapeType: shapeLine, Include: true, Points: pts}}, nil

	case domain.GeometryPoint:
		return []Shape{{ShapeType: shapePoint, Include: true, Points: []domain.Coord{g.Point}}}, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidGeometry, g.Kind)
}

// FromShapeList parses shapes back into a geometry. Multiple polygon shapes
// yield a multipolygon; a single one yields a polygon. The ring-closing
// vertex is appended on parse.
func FromShapeList(shapes []Shape) (*domain.Geometry, error) {
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%w: empty shape list", domain.ErrInvalidGeometry)
	}

	switch shapes[0].ShapeType {
	case shapePolygon:
		rings := make([]domain.Ring, 0, len(shapes))
		for i, s := range shapes {
			if s.ShapeType != shapePolygon {
				return nil, fmt.Errorf("%w: mixed shape types", domain.ErrInvalidGeometry)
			}
			if len(s.Points) < 3 {
				return nil, fmt.Errorf("%w: polygon shape %d has %d points", domain.ErrInvalidGeometry, i, len(s.Points))
			}
			ring := make(domain.Ring, 0, len(s.Points)+1)
			ring = append(ring, s.Points...)
			ring = append(ring, s.Points[0])
			rings = append(rings, ring)
		}
		kind := domain.GeometryPolygon
		if len(rings) > 1 {
			kind = domain.GeometryMultiPolygon
		}
		return &domain.Geometry{Kind: kind, Rings: rings}, nil

	case shapeLine:
		if len(shapes) != 1 || len(shapes[0].Points) < 2 {
			return nil, fmt.Errorf("%w: malformed line shape", domain.ErrInvalidGeometry)
		}
		line := make([]domain.Coord, len(shapes[0].Points))
		copy(line, shapes[0].Points)
		return &domain.Geometry{Kind: domain.GeometryLine, Line: line}, nil

	case shapePoint:
		if len(shapes) != 1 || len(shapes[0].Points) != 1 {
			return nil, fmt.Errorf("%w: malformed point shape", domain.ErrInvalidGeometry)
		}
		return &domain.Geometry{Kind: domain.GeometryPoint, Point: shapes[0].Points[0]}, nil
	}

	return nil, fmt.Errorf("%w: unknown shape type %q", domain.ErrInvalidGeometry, shapes[0].ShapeType)
}

// ReducePolygon removes consecutive vertices whose lon and lat both differ
// from the last kept vertex by less than the tolerances. The first vertex is
// always preserved. Used when emitting KML-style output, where dense rings
// bloat the payload without changing the drawn shape.
func ReducePolygon(points []domain.Coord, xTolDeg, yTolDeg float64) []domain.Coord {
	if len(points) == 0 {
		return nil
	}
	kept := []domain.Coord{points[0]}
	last := points[0]
	for _, p := range points[1:] {
		if abs(p.Lon()-last.Lon()) < xTolDeg && abs(p.Lat()-last.Lat()) < yTolDeg {
			continue
		}
		kept = append(kept, p)
		last = p
	}
	return kept
}

// Clockwise reports ring winding by the signed-area (shoelace) test. KML
// requires counter-clockwise outer rings, so clockwise rings get reversed
// before output.
func Clockwise(ring []domain.Coord) bool {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += (ring[j].Lon() - ring[i].Lon()) * (ring[j].Lat() + ring[i].Lat())
	}
	return sum > 0
}

// Reverse returns the ring in opposite winding order.
func Reverse(ring []domain.Coord) []domain.Coord {
	out := make([]domain.Coord, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
