package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediaforge/models"
)

const (
	resultsKeyPrefix = "batch:results:"

	// Cached results expire together with the artifacts they describe.
	resultsTTL = 10 * time.Minute
)

// ResultsCache keeps recent batch outcomes so callers can re-fetch a report
// without re-running the conversion.
type ResultsCache struct {
	client *redis.Client
}

func Connect(addr string) (*ResultsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &ResultsCache{client: client}, nil
}

func (c *ResultsCache) Set(ctx context.Context, batchID string, results []models.ConversionResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resultsKeyPrefix+batchID, data, resultsTTL).Err()
}

func (c *ResultsCache) Get(ctx context.Context, batchID string) ([]models.ConversionResult, error) {
	data, err := c.client.Get(ctx, resultsKeyPrefix+batchID).Bytes()
	if err != nil {
		return nil, err
	}

	var results []models.ConversionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *ResultsCache) Close() error {
	return c.client.Close()
}
