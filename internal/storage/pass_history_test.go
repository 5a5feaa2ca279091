package storage

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(number uint64) world.PassReport {
	start := time.Date(2024, 1, 1, 0, 0, int(number), 0, time.UTC)
	return world.PassReport{
		ID:         "pass",
		Number:     number,
		Config:     config.DefaultGenerationConfig(),
		Built:      int(number) * 10,
		StartedAt:  start,
		FinishedAt: start.Add(300 * time.Millisecond),
		StageDurations: map[string]time.Duration{
			"building": time.Millisecond,
		},
	}
}

func TestPassHistorySaveGet(t *testing.T) {
	h, err := OpenPassHistory("", 0)
	require.NoError(t, err)
	defer h.Close()

	rec, err := h.Save(report(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Seq)

	got, err := h.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Report.Number)
	assert.Equal(t, 10, got.Report.Built)
	assert.Equal(t, config.DefaultGenerationConfig(), got.Report.Config)
	assert.True(t, got.Report.StartedAt.Equal(report(1).StartedAt))
	assert.Equal(t, time.Millisecond, got.Report.StageDurations["building"])

	_, err = h.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPassHistoryListNewestFirst(t *testing.T) {
	h, err := OpenPassHistory("", 0)
	require.NoError(t, err)
	defer h.Close()

	for i := uint64(1); i <= 5; i++ {
		_, err := h.Save(report(i))
		require.NoError(t, err)
	}

	records, err := h.List(3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []uint64{5, 4, 3}, []uint64{records[0].Seq, records[1].Seq, records[2].Seq})

	all, err := h.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestPassHistoryPrunesOldest(t *testing.T) {
	h, err := OpenPassHistory("", 3)
	require.NoError(t, err)
	defer h.Close()

	for i := uint64(1); i <= 5; i++ {
		_, err := h.Save(report(i))
		require.NoError(t, err)
	}

	records, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(3), records[2].Seq)

	_, err = h.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPassHistoryPersistsSequence(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenPassHistory(dir, 0)
	require.NoError(t, err)
	_, err = h.Save(report(1))
	require.NoError(t, err)
	_, err = h.Save(report(2))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "Повторное закрытие безопасно")

	_, err = h.Save(report(3))
	assert.Error(t, err, "Закрытое хранилище не принимает записи")

	reopened, err := OpenPassHistory(dir, 0)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(2), reopened.LastSeq())

	// Номер прохода после перезапуска снова 1, а запись получает следующий Seq
	rec, err := reopened.Save(report(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Seq)
}

func TestPassHistoryPrunesAfterLimitLowered(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenPassHistory(dir, 0)
	require.NoError(t, err)
	for i := uint64(1); i <= 6; i++ {
		_, err := h.Save(report(i))
		require.NoError(t, err)
	}
	require.NoError(t, h.Close())

	reopened, err := OpenPassHistory(dir, 2)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2, "Записи за пределами нового лимита удаляются при открытии")
	assert.Equal(t, []uint64{6, 5}, []uint64{records[0].Seq, records[1].Seq})

	_, err = reopened.Save(report(7))
	require.NoError(t, err)
	records, err = reopened.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []uint64{7, 6}, []uint64{records[0].Seq, records[1].Seq})

	for seq := uint64(1); seq <= 5; seq++ {
		_, err := reopened.Get(seq)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestPassHistoryListener(t *testing.T) {
	h, err := OpenPassHistory("", 0)
	require.NoError(t, err)
	defer h.Close()

	listener := h.Listener(nil)
	listener(context.Background(), report(7))

	records, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(7), records[0].Report.Number)
}
