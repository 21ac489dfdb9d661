package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const badgerKeyPrefix = "inv:"

// BadgerInventoryRepo хранит инвентари в BadgerDB, значение - сжатый JSON
type BadgerInventoryRepo struct {
	db *badger.DB
}

// NewBadgerInventoryRepo открывает базу в каталоге path.
// Пустой path открывает базу в памяти (для тестов).
func NewBadgerInventoryRepo(path string) (*BadgerInventoryRepo, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerInventoryRepo{db: db}, nil
}

func badgerKey(agent uuid.UUID) []byte {
	return []byte(badgerKeyPrefix + agent.String())
}

// Save сохраняет инвентарь одной транзакцией
func (r *BadgerInventoryRepo) Save(ctx context.Context, rec inventory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.Agent), blob)
	})
}

// Load читает инвентарь агента
func (r *BadgerInventoryRepo) Load(ctx context.Context, agent uuid.UUID) (inventory.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Record{}, false, err
	}

	var blob []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(agent))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return inventory.Record{}, false, nil
	}
	if err != nil {
		return inventory.Record{}, false, fmt.Errorf("ошибка чтения инвентаря %s: %w", agent, err)
	}

	rec, err := decodeRecord(blob)
	if err != nil {
		return inventory.Record{}, false, err
	}
	return rec, true, nil
}

func (r *BadgerInventoryRepo) Delete(ctx context.Context, agent uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(agent))
	})
}

// BatchSave пишет инвентари через WriteBatch
func (r *BadgerInventoryRepo) BatchSave(ctx context.Context, recs []inventory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range recs {
		blob, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		if err := wb.Set(badgerKey(rec.Agent), blob); err != nil {
			return fmt.Errorf("ошибка записи инвентаря %s: %w", rec.Agent, err)
		}
	}
	return wb.Flush()
}

// Close закрывает базу
func (r *BadgerInventoryRepo) Close() error {
	return r.db.Close()
}
