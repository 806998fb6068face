package access

import "github.com/twpayne/go-geom"

// catchment is the union of all region shapes buffered by radius. The
// buffered union can fall apart into disjoint pieces; piece[i] identifies
// the piece containing region i.
type catchment struct {
	shapes []*shape
	radius float64
	parent []int
}

func newCatchment(shapes []*shape, radius float64) *catchment {
	c := &catchment{shapes: shapes, radius: radius, parent: make([]int, len(shapes))}
	for i := range c.parent {
		c.parent[i] = i
	}

	// Two buffers overlap when their regions are within 2*radius.
	for i := range shapes {
		for j := i + 1; j < len(shapes); j++ {
			if c.find(i) == c.find(j) {
				continue
			}
			if shapes[i].within(shapes[j], 2*radius) {
				c.union(i, j)
			}
		}
	}
	return c
}

func (c *catchment) find(i int) int {
	for c.parent[i] != i {
		c.parent[i] = c.parent[c.parent[i]]
		i = c.parent[i]
	}
	return i
}

func (c *catchment) union(i, j int) {
	ri, rj := c.find(i), c.find(j)
	if ri != rj {
		c.parent[rj] = ri
	}
}

// piece returns the catchment piece containing pt, or -1 when pt lies
// outside the buffered union.
func (c *catchment) piece(pt geom.Coord) int {
	for i, s := range c.shapes {
		if boxGap(s.bounds, pt) > c.radius {
			continue
		}
		if s.distanceTo(pt) <= c.radius {
			return c.find(i)
		}
	}
	return -1
}
