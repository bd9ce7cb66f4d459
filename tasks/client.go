package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/redis"
	"github.com/kirklandnuts/ontology-batch-query/utils"
)

type Client struct {
	Runs RunTasks
	// lock serialises batch runs sharing one BioPortal API key.
	lock redis.Client
}

// NewClient is a preferred way for working with run documents
func NewClient() (Client, error) {
	runsRedisClient, err := redis.NewClient(RunsDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Runs: RunTasks{client: runsRedisClient},
		lock: runsRedisClient,
	}, nil
}

// LockAPIKey blocks until no other run holds the lock for apiKey. The key is
// fingerprinted so it never appears in Redis.
func (client *Client) LockAPIKey(ctx context.Context, apiKey string, ttl time.Duration) (redis.ReleaseLock, error) {
	return client.lock.LockFor(ctx, apiKeyLockKey(apiKey), ttl)
}

func (client *Client) Close() {
	_ = client.Runs.client.Close()
}

func apiKeyLockKey(apiKey string) string {
	return fmt.Sprintf("lock:bioportal:%s", utils.Fingerprint(apiKey))
}

func runKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}
