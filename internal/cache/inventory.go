package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	BoardKeyPrefix          = "board:posters"
	RequesterBoardKeyPrefix = "board:requester:%s"
	CatalogKeyPrefix        = "catalog:labels"
)

const (
	BoardTTL          = 2 * time.Minute
	RequesterBoardTTL = 1 * time.Minute
	CatalogTTL        = 5 * time.Minute
)

func BoardKey() string {
	return BoardKeyPrefix
}

func RequesterBoardKey(requesterID string) string {
	return fmt.Sprintf(RequesterBoardKeyPrefix, requesterID)
}

func CatalogKey() string {
	return CatalogKeyPrefix
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateBoard drops the shared availability board. Called after any
// submission, repair, or catalog change that moves slot counts.
func InvalidateBoard(ctx context.Context) {
	Invalidate(ctx, BoardKey())
}

// InvalidateRequester drops one requester's cached board view.
func InvalidateRequester(ctx context.Context, requesterID string) {
	Invalidate(ctx, RequesterBoardKey(requesterID))
}

// InvalidateCatalog drops the cached labeled catalog. Label derivation
// depends on the whole title set, so any catalog write clears it.
func InvalidateCatalog(ctx context.Context) {
	Invalidate(ctx, CatalogKey())
	InvalidateBoard(ctx)
}
