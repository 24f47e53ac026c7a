package pegger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Writer is the slice of the write pipeline the pegger needs.
type Writer interface {
	UpsertPrice(ctx context.Context, p auth.Principal, req protocol.UpsertPriceRequest) (models.PriceRecord, error)
}

// Pegger polls the configured external feeds on a fixed interval and
// submits the extracted prices through the same write path a human admin
// uses, under the synthetic pegger principal. A failing source is logged
// and skipped; it never aborts the cycle or the loop, and there is no
// backoff or circuit breaker.
type Pegger struct {
	sources  []Source
	writer   Writer
	client   *http.Client
	interval time.Duration
	logger   *zap.Logger
}

func New(sources []Source, writer Writer, interval time.Duration, logger *zap.Logger) *Pegger {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Pegger{
		sources:  sources,
		writer:   writer,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is done. The first cycle fires immediately.
func (p *Pegger) Run(ctx context.Context) {
	if len(p.sources) == 0 {
		p.logger.Info("no peg sources configured, pegger idle")
		return
	}
	p.logger.Info("pegger started",
		zap.Int("sources", len(p.sources)), zap.Duration("interval", p.interval))

	p.runCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pegger stopped")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

func (p *Pegger) runCycle(ctx context.Context) {
	for _, src := range p.sources {
		if err := p.pegOne(ctx, src); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("peg source failed",
				zap.String("token", src.Token), zap.String("url", src.URL), zap.Error(err))
		}
	}
}

func (p *Pegger) pegOne(ctx context.Context, src Source) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// UseNumber keeps the raw digits so the value never round-trips
	// through a float64.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	num, err := extractNumber(doc, src.Path)
	if err != nil {
		return err
	}

	mantissa, err := mantissaAtScale(num, src.Scale)
	if err != nil {
		return err
	}

	if _, err := p.writer.UpsertPrice(ctx, auth.PeggerPrincipal, protocol.UpsertPriceRequest{
		Token:    src.Token,
		Mantissa: mantissa,
		Scale:    src.Scale,
	}); err != nil {
		return fmt.Errorf("failed to submit price: %w", err)
	}
	return nil
}

// extractNumber walks a dot-separated path through objects (by key) and
// arrays (by index) and returns the numeric leaf.
func extractNumber(doc interface{}, path string) (json.Number, error) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return "", fmt.Errorf("path element %q not found", seg)
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", fmt.Errorf("path element %q is not a valid array index", seg)
			}
			cur = node[idx]
		default:
			return "", fmt.Errorf("path element %q cannot be descended into", seg)
		}
	}
	num, ok := cur.(json.Number)
	if !ok {
		return "", fmt.Errorf("value at path is not numeric")
	}
	return num, nil
}

// mantissaAtScale converts an extracted value to an integer mantissa at the
// configured scale, truncating any excess precision.
func mantissaAtScale(num json.Number, scale uint32) (string, error) {
	d, err := decimal.NewFromString(num.String())
	if err != nil {
		return "", fmt.Errorf("value %q is not a valid decimal: %w", num.String(), err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("value %s is negative", d.String())
	}
	return d.Shift(int32(scale)).Truncate(0).String(), nil
}
