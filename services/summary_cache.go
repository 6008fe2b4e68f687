package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/HSouheill/commercive_backend/models"
	"github.com/HSouheill/commercive_backend/repositories"
)

// SummaryCache holds derived affiliate summaries. A cached summary is never
// authoritative; callers recompute from orders on a miss.
type SummaryCache interface {
	// Get returns the cached summary, or nil when absent or invalidated.
	Get(ctx context.Context, affiliateID, period string) (*models.AffiliateSummary, error)
	Put(ctx context.Context, summary *models.AffiliateSummary) error
	// Invalidate marks the summaries of the given periods stale.
	Invalidate(ctx context.Context, affiliateID string, periods ...string) error
}

func summaryKey(affiliateID, period string) repositories.Key {
	return repositories.Key{"affiliate_id": affiliateID, "period": period}
}

// StoreSummaryCache keeps summaries in the affiliate_summaries table.
type StoreSummaryCache struct {
	store repositories.Store
}

func NewStoreSummaryCache(store repositories.Store) *StoreSummaryCache {
	return &StoreSummaryCache{store: store}
}

func (c *StoreSummaryCache) Get(ctx context.Context, affiliateID, period string) (*models.AffiliateSummary, error) {
	var summary models.AffiliateSummary
	found, err := c.store.Get(ctx, repositories.TableSummaries, summaryKey(affiliateID, period), &summary)
	if err != nil {
		return nil, err
	}
	if !found || summary.Stale {
		return nil, nil
	}
	return &summary, nil
}

func (c *StoreSummaryCache) Put(ctx context.Context, summary *models.AffiliateSummary) error {
	return c.store.Put(ctx, repositories.TableSummaries, summaryKey(summary.AffiliateID, summary.Period), summary)
}

func (c *StoreSummaryCache) Invalidate(ctx context.Context, affiliateID string, periods ...string) error {
	var errs []error
	for _, period := range periods {
		_, err := c.store.Update(ctx, repositories.TableSummaries, summaryKey(affiliateID, period), repositories.Update{
			Set: map[string]interface{}{"stale": true},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s/%s: %w", affiliateID, period, err))
		}
	}
	return errors.Join(errs...)
}

// RedisSummaryCache keeps summaries as JSON values with a TTL.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func redisSummaryKey(affiliateID, period string) string {
	return "summary:" + affiliateID + ":" + period
}

func (c *RedisSummaryCache) Get(ctx context.Context, affiliateID, period string) (*models.AffiliateSummary, error) {
	data, err := c.client.Get(ctx, redisSummaryKey(affiliateID, period)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary models.AffiliateSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

func (c *RedisSummaryCache) Put(ctx context.Context, summary *models.AffiliateSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisSummaryKey(summary.AffiliateID, summary.Period), data, c.ttl).Err()
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, affiliateID string, periods ...string) error {
	if len(periods) == 0 {
		return nil
	}
	keys := make([]string, len(periods))
	for i, period := range periods {
		keys[i] = redisSummaryKey(affiliateID, period)
	}
	return c.client.Del(ctx, keys...).Err()
}

// periodsForDates lists the lifetime period plus the month of every order date.
func periodsForDates(dates ...string) []string {
	periods := []string{models.PeriodAll}
	seen := map[string]bool{models.PeriodAll: true}
	for _, d := range dates {
		if len(d) < 7 {
			continue
		}
		if p := d[:7]; !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	return periods
}
