package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"lancepay/internal/logger"
	"lancepay/internal/metrics"
)

const (
	refreshInterval = time.Hour
	fetchTimeout    = 5 * time.Second

	redisKeyPrefix = "currency:rate:"
	redisTTL       = 24 * time.Hour
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// seedRates is the floor fallback so conversion never blocks a financial
// operation, even on a cold start with the rate source down.
var seedRates = map[string]decimal.Decimal{
	Regional: decimal.NewFromFloat(31.5),
}

type Service struct {
	apiURL string
	client *http.Client
	redis  *redis.Client

	mu    sync.RWMutex
	rates map[string]Rate
}

func New(apiURL, redisAddr string) *Service {
	var rc *redis.Client
	if redisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return newService(apiURL, rc)
}

// NewWithClients is used by tests to inject HTTP and redis fakes.
func NewWithClients(apiURL string, httpClient *http.Client, redisClient *redis.Client) *Service {
	s := newService(apiURL, redisClient)
	if httpClient != nil {
		s.client = httpClient
	}
	return s
}

func newService(apiURL string, redisClient *redis.Client) *Service {
	return &Service{
		apiURL: apiURL,
		client: &http.Client{Timeout: fetchTimeout},
		redis:  redisClient,
		rates:  make(map[string]Rate),
	}
}

// Start refreshes rates hourly until the context is cancelled. Refresh is
// best effort and never shares a lock with balance mutation.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Currency rate refresher started")

	s.refresh(ctx)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Currency rate refresher stopped")
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// GetRate returns the canonical→quote rate with its age and source. It
// serves degraded cached values rather than failing the caller.
func (s *Service) GetRate(ctx context.Context, quote string) (Rate, error) {
	if quote == Canonical {
		return Rate{
			Base:      Canonical,
			Quote:     Canonical,
			Value:     decimal.NewFromInt(1),
			FetchedAt: time.Now(),
			Source:    SourceLive,
		}, nil
	}

	if _, ok := seedRates[quote]; !ok {
		return Rate{}, ErrUnsupportedCurrency
	}

	s.mu.RLock()
	cached, ok := s.rates[quote]
	s.mu.RUnlock()

	if ok && cached.Age(time.Now()) < refreshInterval {
		return cached, nil
	}

	// First use, or stale: try a synchronous fetch before degrading.
	if fresh, err := s.fetch(ctx); err == nil {
		s.store(ctx, fresh)
		if r, ok := fresh[quote]; ok {
			return r, nil
		}
	}

	if ok {
		cached.Degraded = true
		return cached, nil
	}

	if r, ok := s.loadSnapshot(ctx, quote); ok {
		r.Source = SourceCache
		r.Degraded = true
		s.mu.Lock()
		s.rates[quote] = r
		s.mu.Unlock()
		return r, nil
	}

	return Rate{
		Base:      Canonical,
		Quote:     quote,
		Value:     seedRates[quote],
		FetchedAt: time.Time{},
		Source:    SourceSeed,
		Degraded:  true,
	}, nil
}

// Convert performs display/input math between currencies. Results are
// rounded half-up to two decimal places.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount.Round(2), nil
	}

	var canonical decimal.Decimal
	switch {
	case from == Canonical:
		canonical = amount
	default:
		rate, err := s.GetRate(ctx, from)
		if err != nil {
			return decimal.Zero, err
		}
		canonical = amount.Div(rate.Value)
	}

	if to == Canonical {
		return canonical.Round(2), nil
	}

	rate, err := s.GetRate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	return canonical.Mul(rate.Value).Round(2), nil
}

func (s *Service) refresh(ctx context.Context) {
	fresh, err := s.fetch(ctx)
	if err != nil {
		logger.Errorf("Rate refresh failed, serving last known good: %v", err)
		s.mu.Lock()
		for quote, r := range s.rates {
			r.Degraded = true
			s.rates[quote] = r
		}
		s.mu.Unlock()
		return
	}

	s.store(ctx, fresh)
	logger.Infof("Exchange rates refreshed from %s", s.apiURL)
}

type rateAPIResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (s *Service) fetch(ctx context.Context) (map[string]Rate, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body rateAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode rate response: %w", err)
	}

	now := time.Now()
	fresh := make(map[string]Rate, len(seedRates))
	for quote := range seedRates {
		v, ok := body.Rates[quote]
		if !ok || v <= 0 {
			return nil, fmt.Errorf("rate source missing %s", quote)
		}
		fresh[quote] = Rate{
			Base:      Canonical,
			Quote:     quote,
			Value:     decimal.NewFromFloat(v),
			FetchedAt: now,
			Source:    SourceLive,
		}
	}

	return fresh, nil
}

func (s *Service) store(ctx context.Context, fresh map[string]Rate) {
	s.mu.Lock()
	for quote, r := range fresh {
		s.rates[quote] = r
	}
	s.mu.Unlock()

	for quote, r := range fresh {
		v, _ := r.Value.Float64()
		metrics.RecordExchangeRate(quote, v)
	}

	if s.redis == nil {
		return
	}
	for quote, r := range fresh {
		data, err := json.Marshal(r)
		if err != nil {
			continue
		}
		if err := s.redis.Set(ctx, redisKeyPrefix+quote, data, redisTTL).Err(); err != nil {
			logger.Debugf("Failed to cache rate snapshot for %s: %v", quote, err)
		}
	}
}

func (s *Service) loadSnapshot(ctx context.Context, quote string) (Rate, bool) {
	if s.redis == nil {
		return Rate{}, false
	}

	data, err := s.redis.Get(ctx, redisKeyPrefix+quote).Bytes()
	if err != nil {
		return Rate{}, false
	}

	var r Rate
	if err := json.Unmarshal(data, &r); err != nil {
		return Rate{}, false
	}
	return r, true
}
