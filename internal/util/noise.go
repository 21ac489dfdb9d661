package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise обёртка над генератором шума Перлина, привязанная к одному сиду.
// Каждый генератор мира держит свой экземпляр, чтобы миры с разными сидами не мешали друг другу.
type Noise struct {
	seed int64
	p    *perlin.Perlin
}

// NewNoise создаёт генератор шума Перлина с указанным сидом
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{
		seed: seed,
		p:    perlin.NewPerlin(alpha, beta, n, seed),
	}
}

// Seed возвращает сид генератора
func (n *Noise) Seed() int64 {
	return n.seed
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) Noise2D(x, y float64) float64 {
	// Получаем значение шума (от -1 до 1) и переводим в диапазон от 0 до 1
	return clamp01((n.p.Noise2D(x, y) + 1.0) / 2.0)
}

// Noise3D возвращает трёхмерный шум (от 0 до 1), используется для жил руды
func (n *Noise) Noise3D(x, y, z float64) float64 {
	return clamp01((n.p.Noise3D(x, y, z) + 1.0) / 2.0)
}

// сумма октав изредка выходит за [-1, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
