package statussync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DenizBir/KargoGate/internal/broker/messages"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/metrics"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller claims due shipments, asks the carrier for their current
// status and publishes the result. Applying the result to storage is
// the API consumer's job.
type Poller struct {
	repo     Repository
	carrier  carrier.Client
	tokens   shipments.TokenSource
	producer Producer
	rl       RateLimiter

	topic    string
	fallback carrier.Credentials

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, c carrier.Client, tokens shipments.TokenSource, producer Producer, rl RateLimiter, topic string, fallback carrier.Credentials) *Poller {
	return &Poller{
		repo: repo, carrier: c, tokens: tokens, producer: producer, rl: rl,
		topic:              topic,
		fallback:           fallback,
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueShipments(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due shipments", "error", err.Error())
		p.lastErrorMu.Lock()
		p.lastError = err.Error()
		p.lastErrorMu.Unlock()
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, sh := range items {
		sem <- struct{}{}
		wg.Add(1)
		shCopy := sh
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, shCopy); err != nil {
				p.totalErrors.Add(1)
				p.lastErrorMu.Lock()
				p.lastError = err.Error()
				p.lastErrorMu.Unlock()
				slog.Error("process shipment", "order_id", shCopy.OrderID, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (p *Poller) processOne(ctx context.Context, sh *models.Shipment) error {
	now := time.Now().UTC()

	if p.rl != nil && p.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:carrier:%s:%s", sh.Courier, now.Format("200601021504"))
		allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			slog.Warn("carrier rate limit exceeded", "courier", sh.Courier, "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	creds := p.credsFor(ctx, sh.ShopDomain)

	msg := messages.ShipmentStatusChanged{
		OrderID:   sh.OrderID,
		CheckedAt: now,
	}

	res, err := p.checkStatus(ctx, creds, sh)
	if err != nil {
		metrics.StatusChecks.WithLabelValues("error").Inc()
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(sh.CheckFailCount + 1))
	} else {
		metrics.StatusChecks.WithLabelValues("ok").Inc()
		msg.Status = res.Status
		msg.StatusRaw = res.StatusRaw
		msg.Description = res.Description
		msg.NextCheckAt = now.Add(p.planner.NextCheckDelay(res.Status))
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// kafka may lag behind on a fresh compose start, retry briefly
	key := []byte(sh.OrderID)
	var pubErr error
	for i := 0; i < 10; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, b); pubErr == nil {
			break
		}
		time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
	}
	return pubErr
}

func (p *Poller) checkStatus(ctx context.Context, creds carrier.Credentials, sh *models.Shipment) (carrier.StatusResult, error) {
	token, err := p.tokens.Get(ctx, creds)
	if err != nil {
		return carrier.StatusResult{}, err
	}

	ref := sh.ReferenceID
	if ref == "" {
		ref = sh.TrackingNumber
	}
	return p.carrier.GetShipmentStatus(ctx, creds, token, ref)
}

// credsFor looks the shop up for per-merchant credentials; a missing
// shop degrades to the config fallback.
func (p *Poller) credsFor(ctx context.Context, shopDomain string) carrier.Credentials {
	shop, err := p.repo.GetShopByDomain(ctx, shopDomain)
	if err != nil {
		return shipments.CredentialsFor(nil, p.fallback)
	}
	return shipments.CredentialsFor(shop, p.fallback)
}
