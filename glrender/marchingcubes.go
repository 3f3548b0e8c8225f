package glrender

// Cube corner numbering follows the usual marching cubes convention:
//
//	   7--------6
//	  /|       /|
//	 4--------5 |      y
//	 | 3------|-2      | z
//	 |/       |/       |/
//	 0--------1        +--x
var mcCornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// mcEdgeCorners maps each of the 12 cube edges to its two corners.
var mcEdgeCorners = [12][2]uint8{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// mcFaces lists each cube face's corners counter-clockwise as seen from outside the cube.
var mcFaces = [6][4]uint8{
	{0, 3, 2, 1}, // z=0
	{4, 5, 6, 7}, // z=1
	{0, 1, 5, 4}, // y=0
	{3, 7, 6, 2}, // y=1
	{0, 4, 7, 3}, // x=0
	{1, 2, 6, 5}, // x=1
}

var (
	// mcEdgeMask has bit i set when edge i is crossed by the surface for a given cube index.
	mcEdgeMask [256]uint16
	// mcTriangles lists edge index triplets for every cube index,
	// wound counter-clockwise when seen from outside the surface.
	mcTriangles [256][]uint8
)

func init() {
	for cube := 0; cube < 256; cube++ {
		mcEdgeMask[cube], mcTriangles[cube] = mcBuildCase(uint8(cube))
	}
}

func mcEdgeOf(a, b uint8) uint8 {
	for i, ec := range mcEdgeCorners {
		if (ec[0] == a && ec[1] == b) || (ec[0] == b && ec[1] == a) {
			return uint8(i)
		}
	}
	panic("corners do not share an edge")
}

// mcBuildCase derives the triangulation of cube index cube, where bit i is set
// for corners inside the surface. Every face is walked counter-clockwise and
// the isoline segments joining where the walk enters and leaves the inside
// region are chained into closed polygons which are then fan triangulated.
// Ambiguous faces always separate their inside corners. The decision depends
// only on the face's corners so adjacent cells agree and the surface is watertight.
func mcBuildCase(cube uint8) (mask uint16, tris []uint8) {
	inside := func(c uint8) bool { return cube&(1<<c) != 0 }
	var next [12]int8
	for i := range next {
		next[i] = -1
	}
	type crossing struct {
		edge  uint8
		enter bool
	}
	for _, face := range mcFaces {
		var cs [4]crossing
		n := 0
		for k := 0; k < 4; k++ {
			a, b := face[k], face[(k+1)%4]
			if inside(a) != inside(b) {
				cs[n] = crossing{edge: mcEdgeOf(a, b), enter: inside(b)}
				n++
			}
		}
		if n == 0 {
			continue
		}
		start := 0
		if !cs[0].enter {
			start = 1
		}
		for i := 0; i < n; i += 2 {
			enter, exit := cs[(start+i)%n], cs[(start+i+1)%n]
			next[enter.edge] = int8(exit.edge)
			mask |= 1<<enter.edge | 1<<exit.edge
		}
	}
	var visited [12]bool
	var poly []uint8
	for e := uint8(0); e < 12; e++ {
		if next[e] < 0 || visited[e] {
			continue
		}
		poly = poly[:0]
		for cur := e; !visited[cur]; cur = uint8(next[cur]) {
			visited[cur] = true
			poly = append(poly, cur)
		}
		for i := 1; i+1 < len(poly); i++ {
			tris = append(tris, poly[0], poly[i], poly[i+1])
		}
	}
	return mask, tris
}
