package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/voxelgen/internal/logging"
	"github.com/annel0/voxelgen/internal/world"
	"github.com/dgraph-io/badger/v3"
)

// ErrNotFound возвращается, если запись истории отсутствует
var ErrNotFound = errors.New("pass record not found")

var passPrefix = []byte("pass/")

// PassRecord — запись истории: порядковый номер в хранилище и отчёт прохода.
// Seq сквозной между перезапусками, в отличие от PassReport.Number.
type PassRecord struct {
	Seq    uint64           `json:"seq"`
	Report world.PassReport `json:"report"`
}

// PassHistory хранит отчёты завершённых проходов в BadgerDB
type PassHistory struct {
	db         *badger.DB
	mutex      sync.Mutex
	lastSeq    uint64
	maxRecords int
	isReady    bool
}

// OpenPassHistory открывает историю в каталоге dir.
// Пустой dir открывает BadgerDB в памяти. maxRecords <= 0 — без ограничения.
func OpenPassHistory(dir string, maxRecords int) (*PassHistory, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	h := &PassHistory{db: db, maxRecords: maxRecords, isReady: true}
	if err := h.loadLastSeq(); err != nil {
		db.Close()
		return nil, err
	}
	// Лимит мог уменьшиться с прошлого запуска
	if err := h.prune(h.lastSeq); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func passKey(seq uint64) []byte {
	key := make([]byte, len(passPrefix)+8)
	copy(key, passPrefix)
	binary.BigEndian.PutUint64(key[len(passPrefix):], seq)
	return key
}

// loadLastSeq находит последний номер записи: ключи упорядочены big-endian
func (h *PassHistory) loadLastSeq() error {
	return h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(passKey(^uint64(0)))
		if it.ValidForPrefix(passPrefix) {
			h.lastSeq = binary.BigEndian.Uint64(it.Item().Key()[len(passPrefix):])
		}
		return nil
	})
}

// Close закрывает хранилище
func (h *PassHistory) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isReady {
		return nil
	}
	h.isReady = false
	return h.db.Close()
}

// Save сохраняет отчёт и удаляет записи сверх лимита
func (h *PassHistory) Save(report world.PassReport) (PassRecord, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isReady {
		return PassRecord{}, fmt.Errorf("хранилище не готово")
	}

	record := PassRecord{Seq: h.lastSeq + 1, Report: report}
	data, err := json.Marshal(record)
	if err != nil {
		return PassRecord{}, fmt.Errorf("marshal pass %d: %w", report.Number, err)
	}

	err = h.db.Update(func(txn *badger.Txn) error {
		return txn.Set(passKey(record.Seq), data)
	})
	if err != nil {
		return PassRecord{}, fmt.Errorf("save pass %d: %w", report.Number, err)
	}

	h.lastSeq = record.Seq
	if err := h.prune(record.Seq); err != nil {
		return record, err
	}
	return record, nil
}

// prune удаляет все записи с номером <= newest-maxRecords
func (h *PassHistory) prune(newest uint64) error {
	if h.maxRecords <= 0 || newest <= uint64(h.maxRecords) {
		return nil
	}
	cutoff := newest - uint64(h.maxRecords)

	var stale [][]byte
	err := h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = passPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(passPrefix); it.ValidForPrefix(passPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if binary.BigEndian.Uint64(key[len(passPrefix):]) > cutoff {
				break
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan stale passes: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	// WriteBatch разбивает удаление на транзакции допустимого размера
	wb := h.db.NewWriteBatch()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			wb.Cancel()
			return fmt.Errorf("prune passes: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("prune passes: %w", err)
	}
	return nil
}

// Get возвращает запись по номеру
func (h *PassHistory) Get(seq uint64) (PassRecord, error) {
	var record PassRecord
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(passKey(seq))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return PassRecord{}, ErrNotFound
	}
	if err != nil {
		return PassRecord{}, fmt.Errorf("load pass %d: %w", seq, err)
	}
	return record, nil
}

// List возвращает до limit последних записей, новые первыми
func (h *PassHistory) List(limit int) ([]PassRecord, error) {
	records := make([]PassRecord, 0)
	err := h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(passKey(^uint64(0))); it.ValidForPrefix(passPrefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record PassRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return records, nil
}

// LastSeq возвращает номер последней записи
func (h *PassHistory) LastSeq() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.lastSeq
}

// Listener возвращает обработчик завершённых проходов, сохраняющий их в историю
func (h *PassHistory) Listener(log *logging.Logger) world.PassListener {
	return func(ctx context.Context, report world.PassReport) {
		record, err := h.Save(report)
		if err != nil {
			log.Error("❌ Не удалось сохранить проход %d: %v", report.Number, err)
			return
		}
		log.Debug("💾 Проход %d сохранён как запись %d", report.Number, record.Seq)
	}
}
