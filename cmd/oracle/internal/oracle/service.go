package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/repository"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Publisher receives change events after a write committed.
type Publisher interface {
	Publish(models.ChangeEvent)
}

// Limiter is the per-principal write quota.
type Limiter interface {
	Allow(subject string) bool
}

// Service is the write pipeline: admission control, then the store mutation
// (atomic with its audit entry), then subscriber notification. Notification
// happens strictly after the transaction committed, so a stuck subscriber
// can never stall a write.
type Service struct {
	store   repository.Store
	pub     Publisher
	limiter Limiter
	logger  *zap.Logger
}

func NewService(store repository.Store, pub Publisher, limiter Limiter, logger *zap.Logger) *Service {
	return &Service{store: store, pub: pub, limiter: limiter, logger: logger}
}

// admit applies the rolling write quota. The pegger principal is exempt but
// still funnels through the same serialized store path.
func (s *Service) admit(p auth.Principal) error {
	if p.QuotaExempt() {
		return nil
	}
	if !s.limiter.Allow(p.Subject) {
		return models.ErrRateLimited
	}
	return nil
}

func actorTag(p auth.Principal) string {
	if p.Role == auth.RolePegger {
		return models.ActorPegger
	}
	return models.AdminActor(p.Subject)
}

func (s *Service) UpsertPrice(ctx context.Context, p auth.Principal, req protocol.UpsertPriceRequest) (models.PriceRecord, error) {
	if err := s.admit(p); err != nil {
		return models.PriceRecord{}, err
	}
	rec := models.PriceRecord{
		Token:    req.Token,
		Symbol:   req.Symbol,
		Mantissa: req.Mantissa,
		Scale:    req.Scale,
		Decimals: req.Decimals,
	}
	_, after, err := s.store.UpsertPrice(ctx, rec, actorTag(p))
	if err != nil {
		return models.PriceRecord{}, err
	}
	s.logger.Info("price upserted",
		zap.String("token", after.Token), zap.String("actor", after.UpdatedBy))
	s.pub.Publish(models.ChangeEvent{Type: models.EventPriceUpsert, Kind: models.KindPrice, Key: after.Token, Data: after})
	return after, nil
}

// CreatePrice is the strict variant: it fails with ErrConflict when the
// token already has a record.
func (s *Service) CreatePrice(ctx context.Context, p auth.Principal, req protocol.UpsertPriceRequest) (models.PriceRecord, error) {
	if err := s.admit(p); err != nil {
		return models.PriceRecord{}, err
	}
	rec := models.PriceRecord{
		Token:    req.Token,
		Symbol:   req.Symbol,
		Mantissa: req.Mantissa,
		Scale:    req.Scale,
		Decimals: req.Decimals,
	}
	after, err := s.store.CreatePrice(ctx, rec, actorTag(p))
	if err != nil {
		return models.PriceRecord{}, err
	}
	s.logger.Info("price created",
		zap.String("token", after.Token), zap.String("actor", after.UpdatedBy))
	s.pub.Publish(models.ChangeEvent{Type: models.EventPriceUpsert, Kind: models.KindPrice, Key: after.Token, Data: after})
	return after, nil
}

func (s *Service) PatchPrice(ctx context.Context, p auth.Principal, token string, patch models.PricePatch) (models.PriceRecord, error) {
	if err := s.admit(p); err != nil {
		return models.PriceRecord{}, err
	}
	_, after, err := s.store.PatchPrice(ctx, token, patch, actorTag(p))
	if err != nil {
		return models.PriceRecord{}, err
	}
	s.logger.Info("price patched",
		zap.String("token", token), zap.String("actor", after.UpdatedBy))
	s.pub.Publish(models.ChangeEvent{Type: models.EventPricePatch, Kind: models.KindPrice, Key: token, Data: after})
	return after, nil
}

func (s *Service) DeletePrice(ctx context.Context, p auth.Principal, token string) error {
	if err := s.admit(p); err != nil {
		return err
	}
	if _, err := s.store.DeletePrice(ctx, token, actorTag(p)); err != nil {
		return err
	}
	s.logger.Info("price deleted",
		zap.String("token", token), zap.String("actor", actorTag(p)))
	s.pub.Publish(models.ChangeEvent{Type: models.EventPriceDelete, Kind: models.KindPrice, Key: token})
	return nil
}

func (s *Service) UpsertSymbol(ctx context.Context, p auth.Principal, req protocol.UpsertSymbolRequest) (models.SymbolAlias, error) {
	if err := s.admit(p); err != nil {
		return models.SymbolAlias{}, err
	}
	alias := models.SymbolAlias{Symbol: req.Symbol, Token: req.Token}
	_, after, err := s.store.UpsertSymbol(ctx, alias, actorTag(p))
	if err != nil {
		return models.SymbolAlias{}, err
	}
	s.logger.Info("symbol upserted",
		zap.String("symbol", after.Symbol), zap.String("token", after.Token))
	s.pub.Publish(models.ChangeEvent{Type: models.EventSymbolUpsert, Kind: models.KindSymbol, Key: after.Symbol, Data: after})
	return after, nil
}

func (s *Service) PatchConfig(ctx context.Context, p auth.Principal, patch models.ConfigPatch) (models.OracleConfig, error) {
	if err := s.admit(p); err != nil {
		return models.OracleConfig{}, err
	}
	_, after, err := s.store.PatchConfig(ctx, patch, actorTag(p))
	if err != nil {
		return models.OracleConfig{}, err
	}
	s.logger.Info("config patched", zap.String("actor", actorTag(p)))
	s.pub.Publish(models.ChangeEvent{Type: models.EventConfigPatch, Kind: models.KindConfig, Key: "config", Data: after})
	return after, nil
}
