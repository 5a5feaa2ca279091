package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/voxelgen/internal/logging"
	"github.com/annel0/voxelgen/internal/world"
	"github.com/google/uuid"
)

// EventTerrainGenerated публикуется после каждого завершённого прохода генерации
const EventTerrainGenerated = "TerrainGenerated"

// TerrainGeneratedVersion — версия схемы TerrainGenerated
const TerrainGeneratedVersion = 1

// TerrainGenerated — полезная нагрузка события о завершённом проходе
type TerrainGenerated struct {
	PassID        string            `json:"pass_id"`
	Number        uint64            `json:"number"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Depth         int               `json:"depth"`
	Params        world.FieldParams `json:"params"`
	Built         int               `json:"built"`
	Culled        int               `json:"culled"`
	Survivors     int               `json:"survivors"`
	Vertices      int               `json:"vertices"`
	Indices       int               `json:"indices"`
	Fingerprint   uint64            `json:"fingerprint"`
	ActorPosition [3]float64        `json:"actor_position"`
	DurationMS    int64             `json:"duration_ms"`
}

// NewTerrainGenerated собирает полезную нагрузку из отчёта прохода
func NewTerrainGenerated(report world.PassReport) TerrainGenerated {
	return TerrainGenerated{
		PassID:        report.ID,
		Number:        report.Number,
		Width:         report.Config.Width,
		Height:        report.Config.Height,
		Depth:         report.Config.Depth,
		Params:        report.Params,
		Built:         report.Built,
		Culled:        report.Culled,
		Survivors:     report.Survivors,
		Vertices:      report.Vertices,
		Indices:       report.Indices,
		Fingerprint:   report.Fingerprint,
		ActorPosition: [3]float64{report.ActorPosition.X, report.ActorPosition.Y, report.ActorPosition.Z},
		DurationMS:    report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
}

// NewTerrainGeneratedEnvelope упаковывает отчёт прохода в Envelope.
// CorrelationID совпадает с идентификатором прохода.
func NewTerrainGeneratedEnvelope(source string, report world.PassReport) (*Envelope, error) {
	payload, err := json.Marshal(NewTerrainGenerated(report))
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", EventTerrainGenerated, err)
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        source,
		EventType:     EventTerrainGenerated,
		Version:       TerrainGeneratedVersion,
		CorrelationID: report.ID,
		Priority:      5,
		Payload:       payload,
	}, nil
}

// PassPublisher возвращает обработчик завершённых проходов, публикующий их в шину.
// Ошибки публикации только логируются: конвейер не зависит от доступности шины.
func PassPublisher(bus EventBus, source string, log *logging.Logger) world.PassListener {
	return func(ctx context.Context, report world.PassReport) {
		ev, err := NewTerrainGeneratedEnvelope(source, report)
		if err != nil {
			log.Error("❌ %v", err)
			return
		}
		if err := bus.Publish(ctx, ev); err != nil {
			log.Warn("⚠️ Не удалось опубликовать %s для прохода %d: %v", ev.EventType, report.Number, err)
		}
	}
}
