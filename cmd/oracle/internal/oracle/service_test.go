package oracle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/repository"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/testutils"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

var adminAlice = auth.Principal{Subject: "alice", Role: auth.RoleAdmin}

func newTestService(t *testing.T, verdict bool) (*Service, *testutils.PublisherRecorder, *testutils.LimiterStub) {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "oracle.sqlite"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub := &testutils.PublisherRecorder{}
	limiter := &testutils.LimiterStub{Verdict: verdict}
	return NewService(store, pub, limiter, zap.NewNop()), pub, limiter
}

func TestUpsertPricePublishesAfterWrite(t *testing.T) {
	svc, pub, limiter := newTestService(t, true)

	rec, err := svc.UpsertPrice(context.Background(), adminAlice, protocol.UpsertPriceRequest{
		Token: "ZERA", Symbol: "ZERA", Mantissa: "10", Scale: 2,
	})
	if err != nil {
		t.Fatalf("UpsertPrice() error = %v", err)
	}
	if rec.UpdatedBy != "admin:alice" {
		t.Errorf("UpdatedBy = %q, want %q", rec.UpdatedBy, "admin:alice")
	}

	ev := pub.Last()
	if ev == nil {
		t.Fatal("no event published")
	}
	if ev.Type != models.EventPriceUpsert || ev.Key != "ZERA" {
		t.Errorf("event = %+v, want price.upsert for ZERA", ev)
	}
	if limiter.CallCount() != 1 || limiter.Calls[0] != "alice" {
		t.Errorf("limiter calls = %v, want one check for alice", limiter.Calls)
	}
}

func TestRejectedWritePublishesNothing(t *testing.T) {
	svc, pub, _ := newTestService(t, true)

	_, err := svc.UpsertPrice(context.Background(), adminAlice, protocol.UpsertPriceRequest{
		Token: "ZERA", Mantissa: "not-a-number",
	})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("UpsertPrice() error = %v, want validation error", err)
	}
	if pub.Count() != 0 {
		t.Errorf("published %d events for a rejected write, want 0", pub.Count())
	}
}

func TestRateLimitedWrite(t *testing.T) {
	svc, pub, _ := newTestService(t, false)

	_, err := svc.UpsertPrice(context.Background(), adminAlice, protocol.UpsertPriceRequest{
		Token: "ZERA", Mantissa: "10", Scale: 2,
	})
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("UpsertPrice() error = %v, want ErrRateLimited", err)
	}
	if pub.Count() != 0 {
		t.Errorf("published %d events for a rejected write, want 0", pub.Count())
	}
}

func TestPeggerBypassesQuota(t *testing.T) {
	svc, pub, limiter := newTestService(t, false) // quota would deny everyone

	rec, err := svc.UpsertPrice(context.Background(), auth.PeggerPrincipal, protocol.UpsertPriceRequest{
		Token: "ZERA", Mantissa: "10", Scale: 2,
	})
	if err != nil {
		t.Fatalf("UpsertPrice() error = %v", err)
	}
	if rec.UpdatedBy != models.ActorPegger {
		t.Errorf("UpdatedBy = %q, want %q", rec.UpdatedBy, models.ActorPegger)
	}
	if limiter.CallCount() != 0 {
		t.Errorf("limiter consulted %d times for the pegger, want 0", limiter.CallCount())
	}
	if pub.Count() != 1 {
		t.Errorf("published %d events, want 1", pub.Count())
	}
}

func TestDeletePublishesWithoutPayload(t *testing.T) {
	svc, pub, _ := newTestService(t, true)
	ctx := context.Background()

	if _, err := svc.UpsertPrice(ctx, adminAlice, protocol.UpsertPriceRequest{Token: "ZERA", Mantissa: "10", Scale: 2}); err != nil {
		t.Fatalf("UpsertPrice() error = %v", err)
	}
	if err := svc.DeletePrice(ctx, adminAlice, "ZERA"); err != nil {
		t.Fatalf("DeletePrice() error = %v", err)
	}

	ev := pub.Last()
	if ev.Type != models.EventPriceDelete || ev.Key != "ZERA" {
		t.Errorf("event = %+v, want price.delete for ZERA", ev)
	}
	if ev.Data != nil {
		t.Errorf("delete event carries data: %+v", ev.Data)
	}
}

func TestConfigAndSymbolEvents(t *testing.T) {
	svc, pub, _ := newTestService(t, true)
	ctx := context.Background()

	if _, err := svc.UpsertSymbol(ctx, adminAlice, protocol.UpsertSymbolRequest{Symbol: "ZERA", Token: "tok-1"}); err != nil {
		t.Fatalf("UpsertSymbol() error = %v", err)
	}
	if ev := pub.Last(); ev.Type != models.EventSymbolUpsert || ev.Key != "ZERA" {
		t.Errorf("event = %+v, want symbol.upsert for ZERA", ev)
	}

	fee := 250
	if _, err := svc.PatchConfig(ctx, adminAlice, models.ConfigPatch{FeeBpsDefault: &fee}); err != nil {
		t.Fatalf("PatchConfig() error = %v", err)
	}
	if ev := pub.Last(); ev.Type != models.EventConfigPatch || ev.Key != "config" {
		t.Errorf("event = %+v, want config.patch", ev)
	}
}

func TestStrictCreateConflict(t *testing.T) {
	svc, pub, _ := newTestService(t, true)
	ctx := context.Background()

	if _, err := svc.CreatePrice(ctx, adminAlice, protocol.UpsertPriceRequest{Token: "ZERA", Mantissa: "10", Scale: 2}); err != nil {
		t.Fatalf("CreatePrice() error = %v", err)
	}
	_, err := svc.CreatePrice(ctx, adminAlice, protocol.UpsertPriceRequest{Token: "ZERA", Mantissa: "11", Scale: 2})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("CreatePrice() error = %v, want ErrConflict", err)
	}
	if pub.Count() != 1 {
		t.Errorf("published %d events, want 1", pub.Count())
	}
}
