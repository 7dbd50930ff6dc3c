package search

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Index is the redis-backed duplicate-search index over persons. Merged
// persons must leave the index so they stop surfacing as candidates.
type Index struct {
	client *redis.Client
	logger ectologger.Logger
}

// NewIndex creates an index over the given redis client.
func NewIndex(client *redis.Client, logger ectologger.Logger) *Index {
	return &Index{
		client: client,
		logger: logger,
	}
}

func memberKey(tenantID string) string {
	return fmt.Sprintf("search:%s:persons", tenantID)
}

func documentKey(tenantID, personID string) string {
	return fmt.Sprintf("search:%s:person:%s", tenantID, personID)
}

// RemovePerson drops a person from the index and deletes their document.
func (i *Index) RemovePerson(ctx context.Context, tenantID, personID string) error {
	ctx, span := tracing.StartSpan(ctx, "search.Index.RemovePerson")
	defer span.End()

	if err := i.client.SRem(ctx, memberKey(tenantID), personID); err != nil {
		i.logger.WithContext(ctx).WithError(err).Error("Failed to remove person from search index")
		return err
	}

	if err := i.client.Del(ctx, documentKey(tenantID, personID)); err != nil {
		i.logger.WithContext(ctx).WithError(err).Error("Failed to delete person search document")
		return err
	}

	return nil
}
