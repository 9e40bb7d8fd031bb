// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package encoding reads and writes scenes in the PLY layout used by 3D
// Gaussian splatting tools.
//
// Files store raw parameters: opacities as logits, scales as logarithms and
// unnormalized rotations. ReadPLY applies the activations and WritePLY
// inverts them, so a Scene always holds activated values.
package encoding

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

var ErrFormat = errors.New("encoding: malformed PLY file")

// maxPreallocVertices bounds the capacity reserved from the vertex count
// declared in a header.
const maxPreallocVertices = 1 << 16

type property struct {
	name   string
	kind   string
	offset int
}

var propertySizes = map[string]int{
	"char": 1, "uchar": 1, "int8": 1, "uint8": 1,
	"short": 2, "ushort": 2, "int16": 2, "uint16": 2,
	"int": 4, "uint": 4, "int32": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

type header struct {
	count      int
	stride     int
	properties map[string]property
	numRest    int
}

func readHeader(r *bufio.Reader) (*header, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("%w: missing magic", ErrFormat)
	}
	h := &header{count: -1, properties: map[string]property{}}
	inVertex := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header: %w", ErrFormat, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return nil, fmt.Errorf("%w: unsupported format %q", ErrFormat, strings.TrimSpace(line))
			}
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrFormat, strings.TrimSpace(line))
			}
			inVertex = fields[1] == "vertex"
			if !inVertex {
				// Elements after the vertices are never read.
				if h.count < 0 {
					return nil, fmt.Errorf("%w: element %q before vertices", ErrFormat, fields[1])
				}
				continue
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad vertex count %q", ErrFormat, fields[2])
			}
			h.count = n
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: unsupported property %q", ErrFormat, strings.TrimSpace(line))
			}
			size, ok := propertySizes[fields[1]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown property type %q", ErrFormat, fields[1])
			}
			h.properties[fields[2]] = property{name: fields[2], kind: fields[1], offset: h.stride}
			h.stride += size
			if strings.HasPrefix(fields[2], "f_rest_") {
				h.numRest++
			}
		case "end_header":
			if h.count < 0 {
				return nil, fmt.Errorf("%w: no vertex element", ErrFormat)
			}
			return h, nil
		default:
			return nil, fmt.Errorf("%w: unexpected header line %q", ErrFormat, strings.TrimSpace(line))
		}
	}
}

func (p property) read(rec []byte) float32 {
	b := rec[p.offset:]
	le := binary.LittleEndian
	switch p.kind {
	case "char", "int8":
		return float32(int8(b[0]))
	case "uchar", "uint8":
		return float32(b[0])
	case "short", "int16":
		return float32(int16(le.Uint16(b)))
	case "ushort", "uint16":
		return float32(le.Uint16(b))
	case "int", "int32":
		return float32(int32(le.Uint32(b)))
	case "uint", "uint32":
		return float32(le.Uint32(b))
	case "float", "float32":
		return math.Float32frombits(le.Uint32(b))
	case "double", "float64":
		return float32(math.Float64frombits(le.Uint64(b)))
	default:
		panic("unreachable")
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + jmath.Exp32(-x))
}

func logit(y float32) float32 {
	return float32(math.Log(float64(y) / (1 - float64(y))))
}

// ReadPLY reads a scene of Gaussians from a binary little-endian PLY file.
// The spherical harmonics degree is derived from the number of f_rest
// properties.
func ReadPLY(r io.Reader) (*rasterizer.Scene, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	need := []string{"x", "y", "z", "opacity", "f_dc_0", "f_dc_1", "f_dc_2",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"}
	for _, name := range need {
		if _, ok := h.properties[name]; !ok {
			return nil, fmt.Errorf("%w: missing property %q", ErrFormat, name)
		}
	}
	if h.numRest%3 != 0 {
		return nil, fmt.Errorf("%w: %d f_rest properties", ErrFormat, h.numRest)
	}
	numCoeffs := 1 + h.numRest/3
	degree := -1
	for d := range rasterizer.MaxSHDegree + 1 {
		if (d+1)*(d+1) == numCoeffs {
			degree = d
		}
	}
	if degree < 0 {
		return nil, fmt.Errorf("%w: %d SH coefficients", ErrFormat, numCoeffs)
	}
	rest := make([]property, h.numRest)
	for i := range rest {
		p, ok := h.properties["f_rest_"+strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing property f_rest_%d", ErrFormat, i)
		}
		rest[i] = p
	}
	prop := func(name string) property { return h.properties[name] }

	// Slices grow as records are read. The declared count only bounds the
	// loop.
	n := h.count
	hint := min(n, maxPreallocVertices)
	scene := &rasterizer.Scene{
		Means:     make([][3]float32, 0, hint),
		Scales:    make([][3]float32, 0, hint),
		Rotations: make([][4]float32, 0, hint),
		Opacities: make([]float32, 0, hint),
		SH:        make([]float32, 0, hint*numCoeffs*3),
		Degree:    degree,
		NumCoeffs: numCoeffs,
	}
	rec := make([]byte, h.stride)
	sh := make([]float32, numCoeffs*3)
	for i := range n {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, fmt.Errorf("%w: vertex %d: %w", ErrFormat, i, err)
		}
		var mean, scale [3]float32
		for k, name := range [3]string{"x", "y", "z"} {
			mean[k] = prop(name).read(rec)
		}
		for k := range 3 {
			scale[k] = jmath.Exp32(prop("scale_" + strconv.Itoa(k)).read(rec))
		}
		qr := prop("rot_0").read(rec)
		var q jmath.Vec3
		for k := range 3 {
			q[k] = prop("rot_" + strconv.Itoa(k+1)).read(rec)
		}
		rot := [4]float32{1, 0, 0, 0}
		if l := jmath.Sqrt32(qr*qr + q.Dot(q)); l != 0 {
			rot = [4]float32{qr / l, q[0] / l, q[1] / l, q[2] / l}
		}

		for ch := range 3 {
			sh[ch] = prop("f_dc_" + strconv.Itoa(ch)).read(rec)
			// f_rest is stored channel-major.
			for k := 1; k < numCoeffs; k++ {
				sh[k*3+ch] = rest[ch*(numCoeffs-1)+k-1].read(rec)
			}
		}

		scene.Means = append(scene.Means, mean)
		scene.Scales = append(scene.Scales, scale)
		scene.Rotations = append(scene.Rotations, rot)
		scene.Opacities = append(scene.Opacities, sigmoid(prop("opacity").read(rec)))
		scene.SH = append(scene.SH, sh...)
	}
	return scene, nil
}

// WritePLY writes scene as a binary little-endian PLY file. Scenes with
// precomputed colors or covariances cannot be written.
func WritePLY(w io.Writer, scene *rasterizer.Scene) error {
	if scene.Colors != nil || scene.Cov3D != nil {
		return errors.New("encoding: cannot write precomputed colors or covariances")
	}
	n := scene.Len()
	m := scene.NumCoeffs
	if m < 1 || len(scene.SH) != n*m*3 {
		return fmt.Errorf("encoding: %d SH values for %d Gaussians with %d coefficients", len(scene.SH), n, m)
	}

	names := []string{"x", "y", "z", "nx", "ny", "nz", "f_dc_0", "f_dc_1", "f_dc_2"}
	for i := range (m - 1) * 3 {
		names = append(names, "f_rest_"+strconv.Itoa(i))
	}
	names = append(names, "opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3")

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat binary_little_endian 1.0\nelement vertex %d\n", n)
	for _, name := range names {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	fmt.Fprintf(bw, "end_header\n")

	values := make([]float32, 0, len(names))
	rec := make([]byte, 0, 4*len(names))
	for i := range n {
		values = values[:0]
		values = append(values, scene.Means[i][:]...)
		values = append(values, 0, 0, 0)
		sh := scene.SH[i*m*3 : (i+1)*m*3]
		values = append(values, sh[0], sh[1], sh[2])
		for ch := range 3 {
			for k := 1; k < m; k++ {
				values = append(values, sh[k*3+ch])
			}
		}
		values = append(values, logit(scene.Opacities[i]))
		for k := range 3 {
			values = append(values, float32(math.Log(float64(scene.Scales[i][k]))))
		}
		values = append(values, scene.Rotations[i][:]...)

		rec = rec[:0]
		for _, v := range values {
			rec = binary.LittleEndian.AppendUint32(rec, math.Float32bits(v))
		}
		if _, err := bw.Write(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Properties returns the names of the vertex properties of a PLY file, in
// file order.
func Properties(r io.Reader) ([]string, error) {
	h, err := readHeader(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}
	props := make([]property, 0, len(h.properties))
	for _, p := range h.properties {
		props = append(props, p)
	}
	slices.SortFunc(props, func(a, b property) int { return a.offset - b.offset })
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.name
	}
	return names, nil
}
