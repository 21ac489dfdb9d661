package vec

import "fmt"

// Vec3 представляет позицию клетки в воксельном мире.
// Ось Y вертикальная, X и Z горизонтальные.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Offset возвращает клетку, смещённую на (dx, dy, dz)
func (v Vec3) Offset(dx, dy, dz int) Vec3 {
	return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v == other
}

// DistanceSq возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSq(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// IsAdjacent26 сообщает, являются ли клетки соседями по 26-связности
// (куб 3x3x3 без центра).
func (v Vec3) IsAdjacent26(other Vec3) bool {
	if v == other {
		return false
	}
	return abs(v.X-other.X) <= 1 && abs(v.Y-other.Y) <= 1 && abs(v.Z-other.Z) <= 1
}

// Neighbors26 возвращает 26 соседей клетки.
// Порядок детерминирован: x, затем y, затем z от -1 до 1.
func (v Vec3) Neighbors26() [26]Vec3 {
	var out [26]Vec3
	i := 0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[i] = v.Offset(dx, dy, dz)
				i++
			}
		}
	}
	return out
}

// ChunkCoords возвращает координаты чанка 16x16x16, содержащего клетку
func (v Vec3) ChunkCoords() Vec3 {
	return Vec3{X: v.X >> 4, Y: v.Y >> 4, Z: v.Z >> 4} // Деление на 16
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec3) LocalInChunk() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF} // Модуль 16
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
