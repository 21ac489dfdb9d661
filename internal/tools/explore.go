package tools

import "github.com/annel0/mmo-tools/internal/vec"

// Region связная область клеток в порядке обнаружения обходом в ширину
type Region []vec.Vec3

// Explore обходит в ширину 26-связную область клеток, принимаемых accept, начиная со start.
// Результат не длиннее limit; accept вызывается не более одного раза на клетку.
// limit < 1 или отклонённый start дают пустую область.
func Explore(start vec.Vec3, accept func(vec.Vec3) bool, limit int) Region {
	if limit < 1 || !accept(start) {
		return Region{}
	}

	region := make(Region, 0, min(limit, 64))
	region = append(region, start)

	// Отклонённые клетки тоже запоминаются, чтобы не спрашивать accept повторно
	visited := map[vec.Vec3]struct{}{start: {}}
	queue := []vec.Vec3{start}

	for len(queue) > 0 && len(region) < limit {
		current := queue[0]
		queue = queue[1:]

		for _, n := range current.Neighbors26() {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}

			if !accept(n) {
				continue
			}
			region = append(region, n)
			if len(region) >= limit {
				return region
			}
			queue = append(queue, n)
		}
	}
	return region
}
