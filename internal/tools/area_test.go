package tools

import (
	"testing"

	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/stretchr/testify/assert"
)

func planeSet(cells [9]vec.Vec3) map[vec.Vec3]struct{} {
	set := make(map[vec.Vec3]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	return set
}

func TestSelectPlane_Up(t *testing.T) {
	ref := vec.Vec3{X: 10, Y: 64, Z: -3}
	got := planeSet(SelectPlane(ref, Orientation{Face: FaceUp}))

	want := make(map[vec.Vec3]struct{})
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			want[ref.Offset(dx, 0, dz)] = struct{}{}
		}
	}
	assert.Equal(t, want, got)
}

func TestSelectPlane_ByFace(t *testing.T) {
	ref := vec.Vec3{X: 0, Y: 0, Z: 0}

	tests := []struct {
		face  Face
		fixed func(vec.Vec3) int // Координата, постоянная в плоскости
	}{
		{FaceNorth, func(v vec.Vec3) int { return v.Z }},
		{FaceSouth, func(v vec.Vec3) int { return v.Z }},
		{FaceEast, func(v vec.Vec3) int { return v.X }},
		{FaceWest, func(v vec.Vec3) int { return v.X }},
		{FaceUp, func(v vec.Vec3) int { return v.Y }},
		{FaceDown, func(v vec.Vec3) int { return v.Y }},
	}

	for _, tt := range tests {
		t.Run(tt.face.String(), func(t *testing.T) {
			cells := SelectPlane(ref, Orientation{Face: tt.face})
			assert.Len(t, planeSet(cells), 9, "клетки не повторяются")
			for _, c := range cells {
				assert.Equal(t, 0, tt.fixed(c), "клетка %v вне плоскости", c)
				assert.True(t, c == ref || c.IsAdjacent26(ref))
			}
		})
	}
}

func TestFaceFromYaw(t *testing.T) {
	tests := []struct {
		yaw  float64
		want Face
	}{
		{0, FaceSouth},
		{44.9, FaceSouth},
		{315, FaceSouth},
		{-30, FaceSouth},
		{45, FaceWest},
		{90, FaceWest},
		{135, FaceNorth},
		{180, FaceNorth},
		{-180, FaceNorth},
		{225, FaceEast},
		{270, FaceEast},
		{-90, FaceEast},
		{720, FaceSouth},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FaceFromYaw(tt.yaw), "yaw %v", tt.yaw)
	}
}

func TestPlaneFace_Priority(t *testing.T) {
	// Кликнутая грань важнее направления взгляда
	assert.Equal(t, FaceEast, planeFace(Orientation{Face: FaceEast, Yaw: 0, Pitch: 90}))
	// Крутой взгляд вверх или вниз даёт горизонтальную плоскость
	assert.Equal(t, FaceUp, planeFace(Orientation{Yaw: 90, Pitch: 75}))
	assert.Equal(t, FaceUp, planeFace(Orientation{Yaw: 90, Pitch: -61}))
	// Ровно на пороге ещё вертикальная
	assert.Equal(t, FaceWest, planeFace(Orientation{Yaw: 90, Pitch: SteepPitch}))
}

func TestParseFace(t *testing.T) {
	for _, f := range []Face{FaceNorth, FaceSouth, FaceEast, FaceWest, FaceUp, FaceDown} {
		assert.Equal(t, f, ParseFace(f.String()))
	}
	assert.Equal(t, FaceUp, ParseFace("UP"))
	assert.Equal(t, FaceNorth, ParseFace("North"), "регистр не важен")
	assert.Equal(t, FaceDown, ParseFace(" dOwn "))
	assert.Equal(t, FaceNone, ParseFace("sideways"))
}
