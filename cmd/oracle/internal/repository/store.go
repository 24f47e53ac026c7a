package repository

import (
	"context"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Store is the durable price/symbol/config state plus the audit ledger.
// Every mutating call runs as a single transaction that validates input,
// captures the before-snapshot, applies the change and appends the audit
// entry; callers get both snapshots back so nothing has to re-read state.
type Store interface {
	GetPrice(ctx context.Context, token string) (models.PriceRecord, error)
	ListPrices(ctx context.Context) ([]models.PriceRecord, error)

	// UpsertPrice creates or fully replaces a record. Before is nil on create.
	UpsertPrice(ctx context.Context, rec models.PriceRecord, actor string) (*models.PriceRecord, models.PriceRecord, error)
	// CreatePrice is the strict variant: ErrConflict if the token exists.
	CreatePrice(ctx context.Context, rec models.PriceRecord, actor string) (models.PriceRecord, error)
	// PatchPrice overwrites only the provided fields. ErrNotFound on unknown token.
	PatchPrice(ctx context.Context, token string, patch models.PricePatch, actor string) (models.PriceRecord, models.PriceRecord, error)
	// DeletePrice removes a record and returns the before-snapshot.
	DeletePrice(ctx context.Context, token string, actor string) (models.PriceRecord, error)

	ListSymbols(ctx context.Context) ([]models.SymbolAlias, error)
	UpsertSymbol(ctx context.Context, alias models.SymbolAlias, actor string) (*models.SymbolAlias, models.SymbolAlias, error)

	GetConfig(ctx context.Context) (models.OracleConfig, error)
	PatchConfig(ctx context.Context, patch models.ConfigPatch, actor string) (models.OracleConfig, models.OracleConfig, error)

	// ListAudit returns entries most recent first. cursor <= 0 starts from
	// the newest entry; otherwise only entries with seq < cursor are returned.
	ListAudit(ctx context.Context, limit int, cursor int64) (models.AuditPage, error)

	Close() error
}
