package encoding

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"honnef.co/go/splat/rasterizer"
)

func testScene() *rasterizer.Scene {
	const n = 3
	s := &rasterizer.Scene{
		Means:     [][3]float32{{0, 1, 2}, {-1, 0.5, 3}, {4, -2, 0}},
		Scales:    [][3]float32{{0.1, 0.2, 0.3}, {1, 1, 1}, {0.01, 2, 0.5}},
		Rotations: [][4]float32{{1, 0, 0, 0}, {0.5, 0.5, 0.5, 0.5}, {0, 0, 1, 0}},
		Opacities: []float32{0.5, 0.9, 0.01},
		SH:        make([]float32, n*4*3),
		Degree:    1,
		NumCoeffs: 4,
	}
	for i := range s.SH {
		s.SH[i] = float32(i)*0.1 - 1
	}
	return s
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-5*(1+math.Abs(float64(b)))
}

func TestPLYRoundTrip(t *testing.T) {
	want := testScene()
	var buf bytes.Buffer
	if err := WritePLY(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPLY(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != want.Len() || got.Degree != want.Degree || got.NumCoeffs != want.NumCoeffs {
		t.Fatalf("ReadPLY() = %d Gaussians of degree %d with %d coefficients, want %d, %d, %d",
			got.Len(), got.Degree, got.NumCoeffs, want.Len(), want.Degree, want.NumCoeffs)
	}
	for i := range want.Len() {
		for k := range 3 {
			if !approx(got.Means[i][k], want.Means[i][k]) {
				t.Errorf("Means[%d][%d] = %v, want %v", i, k, got.Means[i][k], want.Means[i][k])
			}
			if !approx(got.Scales[i][k], want.Scales[i][k]) {
				t.Errorf("Scales[%d][%d] = %v, want %v", i, k, got.Scales[i][k], want.Scales[i][k])
			}
		}
		for k := range 4 {
			if !approx(got.Rotations[i][k], want.Rotations[i][k]) {
				t.Errorf("Rotations[%d][%d] = %v, want %v", i, k, got.Rotations[i][k], want.Rotations[i][k])
			}
		}
		if !approx(got.Opacities[i], want.Opacities[i]) {
			t.Errorf("Opacities[%d] = %v, want %v", i, got.Opacities[i], want.Opacities[i])
		}
	}
	for i := range want.SH {
		if got.SH[i] != want.SH[i] {
			t.Errorf("SH[%d] = %v, want %v", i, got.SH[i], want.SH[i])
		}
	}
}

func TestPLYNormalizesRotations(t *testing.T) {
	s := testScene()
	s.Rotations[0] = [4]float32{2, 0, 0, 0}
	var buf bytes.Buffer
	if err := WritePLY(&buf, s); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPLY(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rotations[0] != [4]float32{1, 0, 0, 0} {
		t.Errorf("Rotations[0] = %v, want unit quaternion", got.Rotations[0])
	}
}

func TestProperties(t *testing.T) {
	var s rasterizer.Scene
	s.NumCoeffs = 1
	var buf bytes.Buffer
	if err := WritePLY(&buf, &s); err != nil {
		t.Fatal(err)
	}
	got, err := Properties(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"x", "y", "z", "nx", "ny", "nz", "f_dc_0", "f_dc_1", "f_dc_2",
		"opacity", "scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"}
	if !slices.Equal(got, want) {
		t.Errorf("Properties() = %v, want %v", got, want)
	}
}

func TestReadPLYErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"magic", "plx\n"},
		{"ascii", "ply\nformat ascii 1.0\nelement vertex 0\nend_header\n"},
		{"no vertices", "ply\nformat binary_little_endian 1.0\nend_header\n"},
		{"missing property", "ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty float x\nend_header\n"},
		{"unknown type", "ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty quad x\nend_header\n"},
		{"truncated header", "ply\nformat binary_little_endian 1.0\nelement vertex 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tt.data))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("ReadPLY() = %v, want ErrFormat", err)
			}
		})
	}
}

func TestReadPLYHugeCount(t *testing.T) {
	var hdr strings.Builder
	hdr.WriteString("ply\nformat binary_little_endian 1.0\nelement vertex 4000000000000\n")
	for _, name := range []string{"x", "y", "z", "opacity", "f_dc_0", "f_dc_1", "f_dc_2",
		"scale_0", "scale_1", "scale_2", "rot_0", "rot_1", "rot_2", "rot_3"} {
		hdr.WriteString("property float " + name + "\n")
	}
	hdr.WriteString("end_header\n")
	if _, err := ReadPLY(strings.NewReader(hdr.String())); !errors.Is(err, ErrFormat) {
		t.Errorf("ReadPLY() of header without body = %v, want ErrFormat", err)
	}
}

func TestReadPLYTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePLY(&buf, testScene()); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if _, err := ReadPLY(bytes.NewReader(data[:len(data)-1])); !errors.Is(err, ErrFormat) {
		t.Errorf("ReadPLY() of truncated file = %v, want ErrFormat", err)
	}
}

func TestWritePLYPrecomputed(t *testing.T) {
	s := testScene()
	s.Colors = make([]float32, 3*s.Len())
	if err := WritePLY(&bytes.Buffer{}, s); err == nil {
		t.Error("WritePLY() with precomputed colors succeeded")
	}
}
