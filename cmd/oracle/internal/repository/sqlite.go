package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Compile-time check to ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// Audit actions recorded by the store.
const (
	actionCreatePrice  = "CREATE_PRICE"
	actionUpsertPrice  = "UPSERT_PRICE"
	actionPatchPrice   = "PATCH_PRICE"
	actionDeletePrice  = "DELETE_PRICE"
	actionUpsertSymbol = "UPSERT_SYMBOL"
	actionPatchConfig  = "PATCH_CONFIG"
)

// SQLiteStore keeps all durable state in one SQLite file. writeMu serializes
// every mutation across the whole store, so the before/after pair recorded
// in the audit entry is always exactly the transition that occurred. Reads
// are not taken under writeMu; WAL mode gives them a consistent snapshot.
type SQLiteStore struct {
	db      *sql.DB
	logger  *zap.Logger
	writeMu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database file and runs migrations.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS prices (
			token TEXT PRIMARY KEY,
			symbol TEXT,
			usd_mantissa TEXT NOT NULL,
			usd_scale INTEGER NOT NULL,
			decimals INTEGER,
			updated_at TEXT NOT NULL,
			updated_by TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS symbols (
			symbol TEXT PRIMARY KEY,
			token TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			network TEXT NOT NULL,
			version TEXT NOT NULL,
			fee_bps_default INTEGER NOT NULL,
			supported_tokens TEXT NOT NULL
		);
		INSERT OR IGNORE INTO config (id, network, version, fee_bps_default, supported_tokens)
		VALUES (1, 'devnet', 'v0.1', 100, '[]');
		CREATE TABLE IF NOT EXISTS audit (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			before TEXT,
			after TEXT
		);
	`); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// withWriteTx runs fn inside the store-wide exclusive write section. The
// transaction commits only if fn (mutation plus audit append) succeeded.
func (s *SQLiteStore) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

const priceColumns = "token, symbol, usd_mantissa, usd_scale, decimals, updated_at, updated_by"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrice(r rowScanner) (models.PriceRecord, error) {
	var rec models.PriceRecord
	var symbol sql.NullString
	var decimals sql.NullInt64
	if err := r.Scan(&rec.Token, &symbol, &rec.Mantissa, &rec.Scale, &decimals, &rec.UpdatedAt, &rec.UpdatedBy); err != nil {
		return models.PriceRecord{}, err
	}
	if symbol.Valid {
		rec.Symbol = symbol.String
	}
	if decimals.Valid {
		d := decimals.Int64
		rec.Decimals = &d
	}
	return rec, nil
}

func (s *SQLiteStore) GetPrice(ctx context.Context, token string) (models.PriceRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+priceColumns+" FROM prices WHERE token = ?", token)
	rec, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return models.PriceRecord{}, models.ErrNotFound
	}
	if err != nil {
		return models.PriceRecord{}, fmt.Errorf("failed to get price: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListPrices(ctx context.Context) ([]models.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+priceColumns+" FROM prices ORDER BY token")
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	prices := []models.PriceRecord{}
	for rows.Next() {
		rec, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, rec)
	}
	return prices, rows.Err()
}

// getPriceTx reads the before-snapshot inside the write transaction.
// Returns nil (not an error) when the token is absent.
func getPriceTx(ctx context.Context, tx *sql.Tx, token string) (*models.PriceRecord, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+priceColumns+" FROM prices WHERE token = ?", token)
	rec, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prior price: %w", err)
	}
	return &rec, nil
}

func writePriceTx(ctx context.Context, tx *sql.Tx, rec models.PriceRecord) error {
	var decimals interface{}
	if rec.Decimals != nil {
		decimals = *rec.Decimals
	}
	var symbol interface{}
	if rec.Symbol != "" {
		symbol = rec.Symbol
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO prices (token, symbol, usd_mantissa, usd_scale, decimals, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			symbol = excluded.symbol,
			usd_mantissa = excluded.usd_mantissa,
			usd_scale = excluded.usd_scale,
			decimals = excluded.decimals,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`,
		rec.Token, symbol, rec.Mantissa, rec.Scale, decimals, rec.UpdatedAt, rec.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to write price: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertPrice(ctx context.Context, rec models.PriceRecord, actor string) (*models.PriceRecord, models.PriceRecord, error) {
	if err := validatePriceRecord(&rec); err != nil {
		return nil, models.PriceRecord{}, err
	}
	rec.UpdatedAt = models.NowISO()
	rec.UpdatedBy = actor

	var before *models.PriceRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		b, err := getPriceTx(ctx, tx, rec.Token)
		if err != nil {
			return err
		}
		before = b
		if err := writePriceTx(ctx, tx, rec); err != nil {
			return err
		}
		return appendAudit(ctx, tx, actor, actionUpsertPrice, models.KindPrice, rec.Token, snapshot(before), snapshot(&rec))
	})
	if err != nil {
		return nil, models.PriceRecord{}, err
	}
	return before, rec, nil
}

func (s *SQLiteStore) CreatePrice(ctx context.Context, rec models.PriceRecord, actor string) (models.PriceRecord, error) {
	if err := validatePriceRecord(&rec); err != nil {
		return models.PriceRecord{}, err
	}
	rec.UpdatedAt = models.NowISO()
	rec.UpdatedBy = actor

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		before, err := getPriceTx(ctx, tx, rec.Token)
		if err != nil {
			return err
		}
		if before != nil {
			return fmt.Errorf("token %s: %w", rec.Token, models.ErrConflict)
		}
		if err := writePriceTx(ctx, tx, rec); err != nil {
			return err
		}
		return appendAudit(ctx, tx, actor, actionCreatePrice, models.KindPrice, rec.Token, nil, snapshot(&rec))
	})
	if err != nil {
		return models.PriceRecord{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) PatchPrice(ctx context.Context, token string, patch models.PricePatch, actor string) (models.PriceRecord, models.PriceRecord, error) {
	var before, after models.PriceRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		prior, err := getPriceTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if prior == nil {
			return fmt.Errorf("token %s: %w", token, models.ErrNotFound)
		}
		before = *prior

		after = before
		if patch.Symbol != nil {
			after.Symbol = *patch.Symbol
		}
		if patch.Mantissa != nil {
			after.Mantissa = *patch.Mantissa
		}
		if patch.Scale != nil {
			after.Scale = *patch.Scale
		}
		if patch.Decimals != nil {
			d := *patch.Decimals
			after.Decimals = &d
		}
		if err := validatePriceRecord(&after); err != nil {
			return err
		}
		after.UpdatedAt = models.NowISO()
		after.UpdatedBy = actor

		if err := writePriceTx(ctx, tx, after); err != nil {
			return err
		}
		return appendAudit(ctx, tx, actor, actionPatchPrice, models.KindPrice, token, snapshot(&before), snapshot(&after))
	})
	if err != nil {
		return models.PriceRecord{}, models.PriceRecord{}, err
	}
	return before, after, nil
}

func (s *SQLiteStore) DeletePrice(ctx context.Context, token string, actor string) (models.PriceRecord, error) {
	var before models.PriceRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		prior, err := getPriceTx(ctx, tx, token)
		if err != nil {
			return err
		}
		if prior == nil {
			return fmt.Errorf("token %s: %w", token, models.ErrNotFound)
		}
		before = *prior
		if _, err := tx.ExecContext(ctx, "DELETE FROM prices WHERE token = ?", token); err != nil {
			return fmt.Errorf("failed to delete price: %w", err)
		}
		return appendAudit(ctx, tx, actor, actionDeletePrice, models.KindPrice, token, snapshot(&before), nil)
	})
	if err != nil {
		return models.PriceRecord{}, err
	}
	return before, nil
}

func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]models.SymbolAlias, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT symbol, token FROM symbols ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	aliases := []models.SymbolAlias{}
	for rows.Next() {
		var a models.SymbolAlias
		if err := rows.Scan(&a.Symbol, &a.Token); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *SQLiteStore) UpsertSymbol(ctx context.Context, alias models.SymbolAlias, actor string) (*models.SymbolAlias, models.SymbolAlias, error) {
	if alias.Symbol == "" {
		return nil, models.SymbolAlias{}, models.Validationf("symbol", "must not be empty")
	}
	if alias.Token == "" {
		return nil, models.SymbolAlias{}, models.Validationf("token", "must not be empty")
	}

	var before *models.SymbolAlias
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var prior models.SymbolAlias
		err := tx.QueryRowContext(ctx, "SELECT symbol, token FROM symbols WHERE symbol = ?", alias.Symbol).
			Scan(&prior.Symbol, &prior.Token)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read prior symbol: %w", err)
		}
		if err == nil {
			before = &prior
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (symbol, token) VALUES (?, ?)
			ON CONFLICT(symbol) DO UPDATE SET token = excluded.token`,
			alias.Symbol, alias.Token,
		); err != nil {
			return fmt.Errorf("failed to write symbol: %w", err)
		}
		return appendAudit(ctx, tx, actor, actionUpsertSymbol, models.KindSymbol, alias.Symbol, snapshot(before), snapshot(&alias))
	})
	if err != nil {
		return nil, models.SymbolAlias{}, err
	}
	return before, alias, nil
}

func scanConfig(r rowScanner) (models.OracleConfig, error) {
	var cfg models.OracleConfig
	var supported string
	if err := r.Scan(&cfg.Network, &cfg.Version, &cfg.FeeBpsDefault, &supported); err != nil {
		return models.OracleConfig{}, err
	}
	if err := json.Unmarshal([]byte(supported), &cfg.SupportedTokens); err != nil {
		cfg.SupportedTokens = []string{}
	}
	return cfg, nil
}

const configQuery = "SELECT network, version, fee_bps_default, supported_tokens FROM config WHERE id = 1"

func (s *SQLiteStore) GetConfig(ctx context.Context) (models.OracleConfig, error) {
	cfg, err := scanConfig(s.db.QueryRowContext(ctx, configQuery))
	if err != nil {
		return models.OracleConfig{}, fmt.Errorf("failed to get config: %w", err)
	}
	return cfg, nil
}

func (s *SQLiteStore) PatchConfig(ctx context.Context, patch models.ConfigPatch, actor string) (models.OracleConfig, models.OracleConfig, error) {
	if patch.FeeBpsDefault != nil && (*patch.FeeBpsDefault < 0 || *patch.FeeBpsDefault > 10000) {
		return models.OracleConfig{}, models.OracleConfig{}, models.Validationf("fee_bps_default", "must be between 0 and 10000")
	}

	var before, after models.OracleConfig
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		before, err = scanConfig(tx.QueryRowContext(ctx, configQuery))
		if err != nil {
			return fmt.Errorf("failed to read prior config: %w", err)
		}

		after = before
		if patch.Network != nil {
			after.Network = *patch.Network
		}
		if patch.Version != nil {
			after.Version = *patch.Version
		}
		if patch.FeeBpsDefault != nil {
			after.FeeBpsDefault = *patch.FeeBpsDefault
		}
		if patch.SupportedTokens != nil {
			after.SupportedTokens = patch.SupportedTokens
		}

		supported, err := json.Marshal(after.SupportedTokens)
		if err != nil {
			return fmt.Errorf("failed to encode supported tokens: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE config SET network = ?, version = ?, fee_bps_default = ?, supported_tokens = ? WHERE id = 1",
			after.Network, after.Version, after.FeeBpsDefault, string(supported),
		); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		return appendAudit(ctx, tx, actor, actionPatchConfig, models.KindConfig, "config", snapshot(&before), snapshot(&after))
	})
	if err != nil {
		return models.OracleConfig{}, models.OracleConfig{}, err
	}
	return before, after, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// snapshot marshals a record pointer for the audit ledger; nil in, nil out.
func snapshot[T any](rec *T) []byte {
	if rec == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return b
}
