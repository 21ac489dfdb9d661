package protection

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/vec"
	"github.com/google/uuid"
)

// GlobalRegionID служебный регион, покрывающий весь мир. При проверке доступа не учитывается.
const GlobalRegionID = "__global__"

var ErrInvalidRegion = errors.New("invalid protection region")

// Region защищённый кубоид мира
type Region struct {
	ID         string
	Min, Max   vec.Vec3 // Включительно
	Members    map[uuid.UUID]struct{}
	AllowBreak bool // Разрушение разрешено всем
}

// Contains проверяет попадание клетки в регион
func (r *Region) Contains(p vec.Vec3) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

// permits решает, может ли агент ломать блоки внутри региона
func (r *Region) permits(agent uuid.UUID) bool {
	if r.AllowBreak {
		return true
	}
	_, ok := r.Members[agent]
	return ok
}

// Manager проверяет право агента ломать блоки в защищённых регионах
type Manager struct {
	mu      sync.RWMutex
	regions []*Region
	logger  *logging.Logger
}

// NewManager создаёт менеджер по секции protection конфигурации
func NewManager(cfg config.ProtectionConfig, logger *logging.Logger) (*Manager, error) {
	m := &Manager{logger: logger}
	if err := m.Reload(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload атомарно заменяет набор регионов
func (m *Manager) Reload(cfg config.ProtectionConfig) error {
	regions := make([]*Region, 0, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		r, err := regionFromConfig(rc)
		if err != nil {
			return err
		}
		regions = append(regions, r)
	}

	m.mu.Lock()
	m.regions = regions
	m.mu.Unlock()

	m.logger.OrDefault().Info("🛡️ Загружено защищённых регионов: %d", len(regions))
	return nil
}

func regionFromConfig(rc config.RegionConfig) (*Region, error) {
	if rc.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidRegion)
	}

	r := &Region{
		ID:         rc.ID,
		Members:    make(map[uuid.UUID]struct{}, len(rc.Members)),
		AllowBreak: rc.AllowBreak,
	}
	// Углы могут быть заданы в любом порядке
	r.Min = vec.Vec3{X: min(rc.Min[0], rc.Max[0]), Y: min(rc.Min[1], rc.Max[1]), Z: min(rc.Min[2], rc.Max[2])}
	r.Max = vec.Vec3{X: max(rc.Min[0], rc.Max[0]), Y: max(rc.Min[1], rc.Max[1]), Z: max(rc.Min[2], rc.Max[2])}

	for _, s := range rc.Members {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: region %s member %q: %v", ErrInvalidRegion, rc.ID, s, err)
		}
		r.Members[id] = struct{}{}
	}
	return r, nil
}

// CanAct разрешает действие, если каждый регион, содержащий клетку, его допускает.
// Глобальный регион пропускается; вне регионов действие разрешено.
func (m *Manager) CanAct(agent uuid.UUID, cell vec.Vec3) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.regions {
		if r.ID == GlobalRegionID || !r.Contains(cell) {
			continue
		}
		if !r.permits(agent) {
			return false, nil
		}
	}
	return true, nil
}

// RegionsAt возвращает ID регионов, содержащих клетку (без глобального)
func (m *Manager) RegionsAt(cell vec.Vec3) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, r := range m.regions {
		if r.ID != GlobalRegionID && r.Contains(cell) {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count возвращает количество загруженных регионов
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regions)
}
