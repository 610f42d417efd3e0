package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/state"
)

const (
	ckSummary              = "summary_acc_%s_from_%s_to_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reportServiceImpl struct {
	ledger      Ledger
	reportCache *cache.Cache

	// generation counts flushes. A summary is cached only if no flush
	// happened while it was being computed.
	mu         sync.Mutex
	generation uint64
}

// NewReportService caches summaries in reportCache. Every settled state
// change flushes the cache, so a summary never outlives the data it was
// computed from.
func NewReportService(ledger Ledger, reportCache *cache.Cache) ReportService {
	s := &reportServiceImpl{ledger: ledger, reportCache: reportCache}
	ledger.Subscribe(func(st state.State) {
		if !st.IsLoading {
			s.InvalidateCache()
		}
	})
	return s
}

func boundKey(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return models.FormatTime(*t)
}

func (s *reportServiceImpl) GetSummary(ctx context.Context, accountID string, start, end *time.Time) (models.Summary, error) {
	if accountID == "" {
		current := s.ledger.Snapshot().CurrentAccount
		if current == nil {
			return models.Summary{}, fmt.Errorf("summary: %w: no current account", state.ErrUnknownAccount)
		}
		accountID = current.ID
	}

	cacheKey := fmt.Sprintf(ckSummary, accountID, boundKey(start), boundKey(end))
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.FromContext(ctx).Debug("Summary served from cache", "accountID", accountID)
		return cached.(models.Summary), nil
	}

	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	summary, err := s.ledger.Report(ctx, accountID, start, end)
	if err != nil {
		return models.Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		logger.FromContext(ctx).Debug("State changed during summary, not caching", "accountID", accountID)
		return summary, nil
	}
	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *reportServiceImpl) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.reportCache.Flush()
}
