package eventbus

import (
	"context"
	"encoding/json"

	"github.com/annel0/voxelgen/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог компонента.
// Для TerrainGenerated дополнительно выводится краткая сводка прохода.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus, log *logging.Logger) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		log.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))

		if ev.EventType != EventTerrainGenerated {
			return
		}
		var p TerrainGenerated
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			log.Warn("⚠️ Не удалось разобрать %s: %v", ev.EventType, err)
			return
		}
		log.Info("🗺️ Проход %d: %dx%dx%d, тайлов %d/%d, вершин %d, отпечаток %016x",
			p.Number, p.Width, p.Height, p.Depth, p.Survivors, p.Built, p.Vertices, p.Fingerprint)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
