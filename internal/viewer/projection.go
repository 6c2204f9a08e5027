package viewer

import "math"

// Mat4 is a 4x4 matrix stored column-major, the layout of three.js Matrix4.elements.
type Mat4 [16]float64

// Vec3 is a point in world or normalized device space.
type Vec3 [3]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m·n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = s
		}
	}
	return out
}

// Apply transforms p as a point and performs the perspective divide.
// ok is false when the homogeneous w is zero or the result is not finite.
func (m Mat4) Apply(p Vec3) (Vec3, bool) {
	x, y, z := p[0], p[1], p[2]
	w := m[3]*x + m[7]*y + m[11]*z + m[15]
	if w == 0 {
		return Vec3{}, false
	}
	out := Vec3{
		(m[0]*x + m[4]*y + m[8]*z + m[12]) / w,
		(m[1]*x + m[5]*y + m[9]*z + m[13]) / w,
		(m[2]*x + m[6]*y + m[10]*z + m[14]) / w,
	}
	for _, c := range out {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Vec3{}, false
		}
	}
	return out, true
}

// Project maps a world point to normalized device coordinates the way
// three.js Vector3.project does: view matrix first, then projection.
func Project(p Vec3, view, projection Mat4) (Vec3, bool) {
	v, ok := view.Apply(p)
	if !ok {
		return Vec3{}, false
	}
	return projection.Apply(v)
}

// ToScreen converts NDC to pixel coordinates with the origin at the top left.
func ToScreen(ndc Vec3, width, height float64) (x, y float64) {
	x = (ndc[0] + 1) / 2 * width
	y = -(ndc[1] - 1) / 2 * height
	return x, y
}

// LabelPosition returns the CSS left/top placing a label of f.LabelWidth
// centred under anchor, offset pixels below it.
func LabelPosition(f Frame, anchor Vec3, offset float64) (left, top float64, ok bool) {
	ndc, ok := Project(anchor, f.View, f.Projection)
	if !ok {
		return 0, 0, false
	}
	x, y := ToScreen(ndc, f.Width, f.Height)
	return x - f.LabelWidth/2, y + offset, true
}

// Perspective builds a three.js style perspective matrix; fov is vertical, in degrees.
func Perspective(fov, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fov*math.Pi/360)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// WithAspect returns a copy of a perspective projection rebuilt for a new
// aspect ratio; orthographic matrices are returned unchanged.
func (m Mat4) WithAspect(aspect float64) Mat4 {
	if m[15] != 0 || aspect <= 0 {
		return m
	}
	m[0] = m[5] / aspect
	return m
}

// Translation returns a matrix moving points by t.
func Translation(t Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}
