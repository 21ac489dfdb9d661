package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/mmo-tools/internal/inventory"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MariaInventoryRepo реализует inventory.Repository для MariaDB/MySQL.
// Инвентарь хранится в таблице agent_inventories одной строкой на агента.
type MariaInventoryRepo struct {
	db *sql.DB
}

// NewMariaInventoryRepo создает репозиторий и при необходимости таблицу.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaInventoryRepo(dsn string) (*MariaInventoryRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaInventoryRepo{db: db}
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return repo, nil
}

// createTable создает таблицу agent_inventories, если она не существует
func (r *MariaInventoryRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS agent_inventories (
			agent_id   CHAR(36)    PRIMARY KEY,
			payload    MEDIUMBLOB  NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы agent_inventories: %w", err)
	}
	return nil
}

const mariaUpsert = `
	INSERT INTO agent_inventories (agent_id, payload)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE
		payload = VALUES(payload),
		updated_at = CURRENT_TIMESTAMP
`

// execer общий интерфейс *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *MariaInventoryRepo) upsert(ctx context.Context, ex execer, rec inventory.Record) error {
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, mariaUpsert, rec.Agent.String(), blob); err != nil {
		return fmt.Errorf("ошибка сохранения инвентаря агента %s: %w", rec.Agent, err)
	}
	return nil
}

// Save сохраняет инвентарь через INSERT ... ON DUPLICATE KEY UPDATE
func (r *MariaInventoryRepo) Save(ctx context.Context, rec inventory.Record) error {
	return r.upsert(ctx, r.db, rec)
}

// Load загружает инвентарь агента
func (r *MariaInventoryRepo) Load(ctx context.Context, agent uuid.UUID) (inventory.Record, bool, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM agent_inventories WHERE agent_id = ?`, agent.String()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		// Агент ещё ничего не сохранял
		return inventory.Record{}, false, nil
	}
	if err != nil {
		return inventory.Record{}, false, fmt.Errorf("ошибка загрузки инвентаря агента %s: %w", agent, err)
	}

	rec, err := decodeRecord(blob)
	if err != nil {
		return inventory.Record{}, false, err
	}
	return rec, true, nil
}

func (r *MariaInventoryRepo) Delete(ctx context.Context, agent uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM agent_inventories WHERE agent_id = ?`, agent.String()); err != nil {
		return fmt.Errorf("ошибка удаления инвентаря агента %s: %w", agent, err)
	}
	return nil
}

// BatchSave сохраняет инвентари в одной транзакции
func (r *MariaInventoryRepo) BatchSave(ctx context.Context, recs []inventory.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := r.upsert(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (r *MariaInventoryRepo) Close() error {
	return r.db.Close()
}
