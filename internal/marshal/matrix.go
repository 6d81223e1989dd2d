package marshal

// MatrixKind tags the Matrix variants.
type MatrixKind uint8

const (
	KindAffine2D MatrixKind = iota + 1
	KindMatrix3x3
	KindMatrix4x4
)

// Matrix is one of Affine2D, Matrix3x3 or Matrix4x4. All are row-major.
type Matrix interface {
	Kind() MatrixKind
	To3x3() Matrix3x3
	To4x4() Matrix4x4
}

// Affine2D is [scaleX skewX transX skewY scaleY transY].
type Affine2D [6]float32

// Matrix3x3 is a row-major 3x3 matrix.
type Matrix3x3 [9]float32

// Matrix4x4 is a row-major 4x4 matrix.
type Matrix4x4 [16]float32

// Identity3x3 is the 3x3 identity.
var Identity3x3 = Matrix3x3{1, 0, 0, 0, 1, 0, 0, 0, 1}

func (m Affine2D) Kind() MatrixKind  { return KindAffine2D }
func (m Matrix3x3) Kind() MatrixKind { return KindMatrix3x3 }
func (m Matrix4x4) Kind() MatrixKind { return KindMatrix4x4 }

func (m Affine2D) To3x3() Matrix3x3 {
	return Matrix3x3{m[0], m[1], m[2], m[3], m[4], m[5], 0, 0, 1}
}

func (m Affine2D) To4x4() Matrix4x4 {
	return m.To3x3().To4x4()
}

func (m Matrix3x3) To3x3() Matrix3x3 {
	return m
}

// To4x4 embeds the 2-D matrix in 3-D, leaving the z axis untouched.
func (m Matrix3x3) To4x4() Matrix4x4 {
	return Matrix4x4{
		m[0], m[1], 0, m[2],
		m[3], m[4], 0, m[5],
		0, 0, 1, 0,
		m[6], m[7], 0, m[8],
	}
}

// To3x3 drops the z row and column.
func (m Matrix4x4) To3x3() Matrix3x3 {
	return Matrix3x3{m[0], m[1], m[3], m[4], m[5], m[7], m[12], m[13], m[15]}
}

func (m Matrix4x4) To4x4() Matrix4x4 {
	return m
}

// ParseMatrix builds a Matrix from a flat slice of 6, 9 or 16 values.
func ParseMatrix(v []float32) (Matrix, error) {
	switch len(v) {
	case 6:
		var m Affine2D
		copy(m[:], v)
		return m, nil
	case 9:
		var m Matrix3x3
		copy(m[:], v)
		return m, nil
	case 16:
		var m Matrix4x4
		copy(m[:], v)
		return m, nil
	default:
		return nil, &MatrixSizeError{Len: len(v)}
	}
}

// Matrix3x3 stages m as nine floats. A nil matrix yields the null pointer.
func (s *Scratch) Matrix3x3(m Matrix) (uint32, error) {
	if m == nil {
		return 0, nil
	}
	mm := m.To3x3()
	return Copy(s, mm[:])
}

// Matrix4x4 stages m as sixteen floats. A nil matrix yields the null pointer.
func (s *Scratch) Matrix4x4(m Matrix) (uint32, error) {
	if m == nil {
		return 0, nil
	}
	mm := m.To4x4()
	return Copy(s, mm[:])
}
