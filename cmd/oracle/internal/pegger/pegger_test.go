package pegger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

type recordedWrite struct {
	principal auth.Principal
	req       protocol.UpsertPriceRequest
}

type writerRecorder struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (w *writerRecorder) UpsertPrice(_ context.Context, p auth.Principal, req protocol.UpsertPriceRequest) (models.PriceRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, recordedWrite{principal: p, req: req})
	return models.PriceRecord{Token: req.Token, Mantissa: req.Mantissa, Scale: req.Scale}, nil
}

func (w *writerRecorder) all() []recordedWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recordedWrite(nil), w.writes...)
}

func TestParseSources(t *testing.T) {
	sources, err := ParseSources("ZERA|http://example/price|data.usd|6; BTC|http://example/btc|0.last|2")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, Source{Token: "ZERA", URL: "http://example/price", Path: "data.usd", Scale: 6}, sources[0])
	assert.Equal(t, Source{Token: "BTC", URL: "http://example/btc", Path: "0.last", Scale: 2}, sources[1])
}

func TestParseSourcesEmpty(t *testing.T) {
	sources, err := ParseSources("   ")
	require.NoError(t, err)
	assert.Nil(t, sources)
}

func TestParseSourcesMalformed(t *testing.T) {
	for _, raw := range []string{
		"ZERA|http://example/price|data.usd",     // missing scale
		"ZERA|http://example/price|data.usd|big", // non numeric scale
		"ZERA|http://example/price|data.usd|6|x", // extra field
		"ZERA|http://example/price|data.usd|-1",  // negative scale
	} {
		_, err := ParseSources(raw)
		assert.Error(t, err, "raw = %q", raw)
	}
}

func TestExtractNumber(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"data":{"prices":[{"usd":1.5},{"usd":"str"}]},"count":2}`))
	dec.UseNumber()
	var doc interface{}
	require.NoError(t, dec.Decode(&doc))

	num, err := extractNumber(doc, "data.prices.0.usd")
	require.NoError(t, err)
	assert.Equal(t, "1.5", num.String())

	num, err = extractNumber(doc, "count")
	require.NoError(t, err)
	assert.Equal(t, "2", num.String())

	_, err = extractNumber(doc, "data.missing")
	assert.Error(t, err)
	_, err = extractNumber(doc, "data.prices.7.usd")
	assert.Error(t, err)
	_, err = extractNumber(doc, "data.prices.1.usd") // string leaf
	assert.Error(t, err)
	_, err = extractNumber(doc, "count.deeper")
	assert.Error(t, err)
}

func TestMantissaAtScale(t *testing.T) {
	cases := []struct {
		in    string
		scale uint32
		want  string
	}{
		{"1.2345", 2, "123"},
		{"1.2345", 6, "1234500"},
		{"0.1", 2, "10"},
		{"42", 0, "42"},
		{"0", 9, "0"},
		// large enough that a float64 round trip would corrupt the digits
		{"184467440737095516.15", 2, "18446744073709551615"},
	}
	for _, tc := range cases {
		got, err := mantissaAtScale(json.Number(tc.in), tc.scale)
		require.NoError(t, err, "in = %q", tc.in)
		assert.Equal(t, tc.want, got, "in = %q scale = %d", tc.in, tc.scale)
	}

	_, err := mantissaAtScale(json.Number("-1.5"), 2)
	assert.Error(t, err)
}

func TestRunCycleWritesExtractedPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"usd":1.2345}}`))
	}))
	defer srv.Close()

	rec := &writerRecorder{}
	p := New([]Source{{Token: "ZERA", URL: srv.URL, Path: "data.usd", Scale: 4}}, rec, 0, zap.NewNop())
	p.runCycle(context.Background())

	writes := rec.all()
	require.Len(t, writes, 1)
	assert.Equal(t, auth.PeggerPrincipal, writes[0].principal)
	assert.Equal(t, "ZERA", writes[0].req.Token)
	assert.Equal(t, "12345", writes[0].req.Mantissa)
	assert.Equal(t, uint32(4), writes[0].req.Scale)
}

func TestRunCycleSkipsFailingSource(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()
	notNumeric := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"unavailable"}`))
	}))
	defer notNumeric.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":2.5}`))
	}))
	defer good.Close()

	rec := &writerRecorder{}
	p := New([]Source{
		{Token: "BAD", URL: bad.URL, Path: "price", Scale: 2},
		{Token: "STR", URL: notNumeric.URL, Path: "price", Scale: 2},
		{Token: "OK", URL: good.URL, Path: "price", Scale: 2},
	}, rec, 0, zap.NewNop())
	p.runCycle(context.Background())

	// the two failures are skipped, the healthy source still lands
	writes := rec.all()
	require.Len(t, writes, 1)
	assert.Equal(t, "OK", writes[0].req.Token)
	assert.Equal(t, "250", writes[0].req.Mantissa)
}

func TestRunIdleWithoutSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		New(nil, &writerRecorder{}, 0, zap.NewNop()).Run(ctx)
		close(done)
	}()
	<-done // returns immediately, no polling loop
}
