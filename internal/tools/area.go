package tools

import (
	"math"
	"strings"

	"github.com/annel0/mmo-tools/internal/vec"
)

// Face грань блока, по которой кликнул агент
type Face uint8

const (
	FaceNone Face = iota
	FaceNorth
	FaceSouth
	FaceEast
	FaceWest
	FaceUp
	FaceDown
)

func (f Face) String() string {
	switch f {
	case FaceNorth:
		return "north"
	case FaceSouth:
		return "south"
	case FaceEast:
		return "east"
	case FaceWest:
		return "west"
	case FaceUp:
		return "up"
	case FaceDown:
		return "down"
	default:
		return "none"
	}
}

// ParseFace разбирает имя грани без учёта регистра; неизвестное имя даёт FaceNone
func ParseFace(s string) Face {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north":
		return FaceNorth
	case "south":
		return FaceSouth
	case "east":
		return FaceEast
	case "west":
		return FaceWest
	case "up":
		return FaceUp
	case "down":
		return FaceDown
	default:
		return FaceNone
	}
}

// SteepPitch угол наклона взгляда (в градусах), начиная с которого выбирается горизонтальная плоскость
const SteepPitch = 60.0

// Orientation ориентация агента в момент использования
type Orientation struct {
	Face  Face    // Кликнутая грань; FaceNone, если неизвестна
	Yaw   float64 // Поворот в градусах
	Pitch float64 // Наклон в градусах, от -90 (вверх) до 90 (вниз)
}

// FaceFromYaw переводит поворот в сторону света.
// Поворот нормализуется в [0, 360): [315, 45) - юг, [45, 135) - запад, [135, 225) - север, иначе восток.
func FaceFromYaw(yaw float64) Face {
	yaw = math.Mod(yaw, 360)
	if yaw < 0 {
		yaw += 360
	}
	switch {
	case yaw >= 315 || yaw < 45:
		return FaceSouth
	case yaw < 135:
		return FaceWest
	case yaw < 225:
		return FaceNorth
	default:
		return FaceEast
	}
}

// planeFace выбирает грань, задающую плоскость. Кликнутая грань приоритетнее направления взгляда.
func planeFace(o Orientation) Face {
	if o.Face != FaceNone {
		return o.Face
	}
	if math.Abs(o.Pitch) > SteepPitch {
		return FaceUp
	}
	return FaceFromYaw(o.Yaw)
}

// SelectPlane возвращает 9 клеток плоскости 3x3 с центром в ref, перпендикулярной грани.
// Север/юг - плоскость XY, восток/запад - ZY, верх/низ - XZ. Границы мира не проверяются.
func SelectPlane(ref vec.Vec3, o Orientation) [9]vec.Vec3 {
	var cells [9]vec.Vec3
	i := 0
	for a := -1; a <= 1; a++ {
		for b := -1; b <= 1; b++ {
			switch planeFace(o) {
			case FaceNorth, FaceSouth:
				cells[i] = ref.Offset(a, b, 0)
			case FaceEast, FaceWest:
				cells[i] = ref.Offset(0, b, a)
			default:
				cells[i] = ref.Offset(a, 0, b)
			}
			i++
		}
	}
	return cells
}
