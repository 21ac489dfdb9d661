package eventbus

import (
	"context"

	"github.com/annel0/mmo-tools/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог уровня DEBUG.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus, logger *logging.Logger) (Subscription, error) {
	log := logger.OrDefault()
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		fields, err := ev.Fields()
		if err != nil {
			log.Warn("[EventBus] %s %s: %v", ev.ID, ev.EventType, err)
			return
		}
		log.Debug("[EventBus] %s %s src=%s prio=%d %v", ev.ID, ev.EventType, ev.Source, ev.Priority, fields)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
