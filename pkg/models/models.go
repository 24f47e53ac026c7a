package models

import (
	"encoding/json"
	"time"
)

// Entity kinds carried in audit entries and change events.
const (
	KindPrice  = "price"
	KindSymbol = "symbol"
	KindConfig = "config"
)

// Actor tags recorded in updated_by and audit entries.
const (
	ActorPegger = "pegger"
	ActorSeed   = "seed"
)

// AdminActor builds the updated_by tag for a human admin write.
func AdminActor(subject string) string {
	return "admin:" + subject
}

// NowISO returns the current UTC time in RFC3339, the timestamp format
// used across price records and audit entries.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// PriceRecord is the current price fact for one token.
// The true price is Mantissa * 10^-Scale; the mantissa is kept as a
// decimal-digit string so no precision is lost on the wire or in storage.
type PriceRecord struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol,omitempty"`
	Mantissa  string `json:"usd_mantissa"`
	Scale     uint32 `json:"usd_scale"`
	Decimals  *int64 `json:"decimals,omitempty"`
	UpdatedAt string `json:"updated_at"`
	UpdatedBy string `json:"updated_by"`
}

// PricePatch carries a partial price update; nil fields keep prior values.
type PricePatch struct {
	Symbol   *string `json:"symbol,omitempty"`
	Mantissa *string `json:"usd_mantissa,omitempty"`
	Scale    *uint32 `json:"usd_scale,omitempty"`
	Decimals *int64  `json:"decimals,omitempty"`
}

// SymbolAlias maps a human symbol to exactly one token identifier.
type SymbolAlias struct {
	Symbol string `json:"symbol"`
	Token  string `json:"token"`
}

// OracleConfig is the singleton configuration record.
type OracleConfig struct {
	Network         string   `json:"network"`
	Version         string   `json:"version"`
	FeeBpsDefault   int      `json:"fee_bps_default"`
	SupportedTokens []string `json:"supported_tokens"`
}

// ConfigPatch carries a partial config update; nil fields keep prior values.
type ConfigPatch struct {
	Network         *string  `json:"network,omitempty"`
	Version         *string  `json:"version,omitempty"`
	FeeBpsDefault   *int     `json:"fee_bps_default,omitempty"`
	SupportedTokens []string `json:"supported_tokens,omitempty"`
}

// AuditEntry is one immutable ledger row. Seq is assigned by the store and
// doubles as the pagination cursor. Before is null on creation, After is
// null on deletion.
type AuditEntry struct {
	Seq    int64           `json:"seq"`
	Ts     string          `json:"ts"`
	Actor  string          `json:"actor"`
	Action string          `json:"action"`
	Kind   string          `json:"kind"`
	Key    string          `json:"key"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// AuditPage is the paginated audit listing returned to clients.
type AuditPage struct {
	Entries    []AuditEntry `json:"entries"`
	NextCursor *int64       `json:"next_cursor,omitempty"`
}

// Change event types pushed to live subscribers.
const (
	EventPriceUpsert  = "price_upsert"
	EventPricePatch   = "price_patch"
	EventPriceDelete  = "price_delete"
	EventSymbolUpsert = "symbol_upsert"
	EventConfigPatch  = "config_patch"
)

// ChangeEvent is pushed to live subscribers after a committed mutation.
// Data holds the post-mutation snapshot and is nil for deletions.
type ChangeEvent struct {
	Type string      `json:"type"`
	Kind string      `json:"kind"`
	Key  string      `json:"key"`
	Data interface{} `json:"data,omitempty"`
}
