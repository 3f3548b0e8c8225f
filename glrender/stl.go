package glrender

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// WriteBinarySTL writes triangles to w in binary STL format with facet normals
// computed from the winding of each triangle. It returns the number of bytes written.
func WriteBinarySTL(w io.Writer, triangles []ms3.Triangle) (int, error) {
	if uint64(len(triangles)) > math.MaxUint32 {
		return 0, fmt.Errorf("too many triangles for STL: %d", len(triangles))
	}
	bw := bufio.NewWriter(w)
	var header [stlHeaderSize + 4]byte
	copy(header[:], "sdftrace binary STL")
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(len(triangles)))
	n, err := bw.Write(header[:])
	if err != nil {
		return n, err
	}
	var buf [stlTriangleSize]byte
	for _, t := range triangles {
		normal := gleval.UnitOrUp(faceNormal(t[0], t[1], t[2]))
		putVec(buf[0:], normal)
		putVec(buf[12:], t[0])
		putVec(buf[24:], t[1])
		putVec(buf[36:], t[2])
		// Attribute byte count stays zero.
		nw, err := bw.Write(buf[:])
		n += nw
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func putVec(b []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

// WriteOBJ writes m to w in Wavefront OBJ format including vertex normals.
func WriteOBJ(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# sdftrace OBJ\n# vertices: %d\n# triangles: %d\n", m.VertexCount(), m.TriangleCount())
	var scratch []byte
	writeVec := func(prefix string, v ms3.Vec) {
		scratch = append(scratch[:0], prefix...)
		scratch = strconv.AppendFloat(scratch, float64(v.X), 'g', -1, 32)
		scratch = append(scratch, ' ')
		scratch = strconv.AppendFloat(scratch, float64(v.Y), 'g', -1, 32)
		scratch = append(scratch, ' ')
		scratch = strconv.AppendFloat(scratch, float64(v.Z), 'g', -1, 32)
		scratch = append(scratch, '\n')
		bw.Write(scratch)
	}
	for _, v := range m.Vertices {
		writeVec("v ", v.Pos)
	}
	for _, v := range m.Vertices {
		writeVec("vn ", v.Normal)
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		// OBJ indices are 1-based.
		a, b, c := m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1
		fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
	}
	return bw.Flush()
}
