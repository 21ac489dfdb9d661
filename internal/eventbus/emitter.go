package eventbus

import (
	"context"
	"errors"
)

// ErrClosed шина закрыта
var ErrClosed = errors.New("event bus is closed")

// Emitter публикует события одного источника в шину
type Emitter struct {
	bus      EventBus
	source   string
	priority int
}

// NewEmitter создаёт публикатор с приоритетом по умолчанию 3 (низкий, отбрасывается при переполнении)
func NewEmitter(bus EventBus, source string) *Emitter {
	return &Emitter{bus: bus, source: source, priority: 3}
}

// WithPriority возвращает копию публикатора с другим приоритетом
func (e *Emitter) WithPriority(p int) *Emitter {
	cp := *e
	cp.priority = p
	return &cp
}

// Emit упаковывает поля и публикует событие
func (e *Emitter) Emit(ctx context.Context, eventType string, fields map[string]any) error {
	if e == nil || e.bus == nil {
		return nil
	}
	ev, err := NewEnvelope(e.source, eventType, fields)
	if err != nil {
		return err
	}
	ev.Priority = e.priority
	return e.bus.Publish(ctx, ev)
}
