package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// appendAudit persists one ledger row inside the mutation's transaction.
// It does no business validation: the store validated the change already,
// this only records it. If the insert fails the whole write rolls back, so
// no state change is ever left unaudited.
func appendAudit(ctx context.Context, tx *sql.Tx, actor, action, kind, key string, before, after []byte) error {
	var beforeVal, afterVal interface{}
	if before != nil {
		beforeVal = string(before)
	}
	if after != nil {
		afterVal = string(after)
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO audit (ts, actor, action, kind, key, before, after) VALUES (?, ?, ?, ?, ?, ?, ?)",
		models.NowISO(), actor, action, kind, key, beforeVal, afterVal,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit pages through the ledger, most recent first. The next cursor is
// the seq of the last returned entry and is present only when the page was
// full, so clients stop naturally on a short page.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int, cursor int64) (models.AuditPage, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var rows *sql.Rows
	var err error
	const auditColumns = "seq, ts, actor, action, kind, key, before, after"
	if cursor > 0 {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+auditColumns+" FROM audit WHERE seq < ? ORDER BY seq DESC LIMIT ?", cursor, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+auditColumns+" FROM audit ORDER BY seq DESC LIMIT ?", limit)
	}
	if err != nil {
		return models.AuditPage{}, fmt.Errorf("failed to list audit: %w", err)
	}
	defer rows.Close()

	page := models.AuditPage{Entries: []models.AuditEntry{}}
	for rows.Next() {
		var e models.AuditEntry
		var before, after sql.NullString
		if err := rows.Scan(&e.Seq, &e.Ts, &e.Actor, &e.Action, &e.Kind, &e.Key, &before, &after); err != nil {
			return models.AuditPage{}, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return models.AuditPage{}, fmt.Errorf("audit rows iteration error: %w", err)
	}

	if len(page.Entries) == limit {
		next := page.Entries[len(page.Entries)-1].Seq
		page.NextCursor = &next
	}
	return page, nil
}
