package app

import (
	"context"

	"github.com/annel0/mmo-tools/internal/eventbus"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/tools"
	"github.com/annel0/mmo-tools/internal/world"
	"github.com/google/uuid"
)

// Типы событий мира в шине
const (
	EventBlockRemoved = "BlockRemoved"
	EventFeedback     = "BlockFeedback"
)

// worldBridge пересылает изменения мира в шину событий
func worldBridge(emitter *eventbus.Emitter) world.Listener {
	return func(ev world.Event) {
		switch e := ev.(type) {
		case world.BlockEvent:
			if e.EventType != world.EventTypeBlockRemoved {
				return
			}
			_ = emitter.Emit(context.Background(), EventBlockRemoved, map[string]any{
				"x":        e.Position.X,
				"y":        e.Position.Y,
				"z":        e.Position.Z,
				"material": string(e.Material),
			})
		case world.FeedbackEvent:
			_ = emitter.Emit(context.Background(), EventFeedback, map[string]any{
				"x":      e.Position.X,
				"y":      e.Position.Y,
				"z":      e.Position.Z,
				"effect": e.Effect.String(),
			})
		}
	}
}

// logNotifier сообщает агентам об отказах через лог.
// Сетевого канала к клиентам у сервера инструментов нет.
type logNotifier struct {
	logger *logging.Logger
}

func (n *logNotifier) Rejected(agent uuid.UUID, kind tools.ToolKind, r tools.Rejection) {
	n.logger.OrDefault().Debug("🚫 %s агента %s отклонён: %s", kind, agent, r)
}
