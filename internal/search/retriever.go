package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/coderag/internal/config"
	"github.com/Aman-CERP/coderag/internal/embed"
	"github.com/Aman-CERP/coderag/internal/store"
)

// Retriever runs the dense and lexical legs against the codebase
// collection and fuses them into one ranked list.
type Retriever struct {
	store      store.Store
	embedder   embed.Embedder
	collection string
	cfg        config.SearchConfig
}

// NewRetriever creates a retriever over the given store and embedder.
func NewRetriever(st store.Store, embedder embed.Embedder, collection string, cfg config.SearchConfig) *Retriever {
	return &Retriever{
		store:      st,
		embedder:   embedder,
		collection: collection,
		cfg:        cfg,
	}
}

// Search runs both legs concurrently and returns the fused ranking,
// truncated to limit (or max(dense_k, keyword_k) when limit <= 0).
//
// The legs are independent: each is bounded by the configured leg timeout
// and degrades to an empty list on timeout or failure instead of failing
// the query. RRF over one empty leg reproduces the other leg's order.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]FusedResult, error) {
	legLimit := r.cfg.DenseK
	if r.cfg.KeywordK > legLimit {
		legLimit = r.cfg.KeywordK
	}
	if limit <= 0 {
		limit = legLimit
	}

	var denseLeg, keywordLeg []store.ScoredRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		denseLeg = r.denseLeg(gctx, query, legLimit)
		return nil
	})
	g.Go(func() error {
		keywordLeg = r.keywordLeg(gctx, query, legLimit)
		return nil
	})
	// Leg failures degrade to empty lists, never to an error.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return FuseRRF([][]store.ScoredRecord{denseLeg, keywordLeg}, r.cfg.RRFConstant, limit), nil
}

// denseLeg embeds the query once and runs the nearest-neighbor search.
func (r *Retriever) denseLeg(ctx context.Context, query string, limit int) []store.ScoredRecord {
	legCtx, cancel := r.legContext(ctx)
	defer cancel()

	vector, err := r.embedder.Embed(legCtx, query)
	if err != nil {
		slog.Warn("dense_leg_degraded",
			slog.String("stage", "embed"),
			slog.String("error", err.Error()))
		return nil
	}

	results, err := r.store.DenseSearch(legCtx, r.collection, vector, limit)
	if err != nil {
		slog.Warn("dense_leg_degraded",
			slog.String("stage", "search"),
			slog.String("error", err.Error()))
		return nil
	}
	return results
}

// keywordLeg tokenizes the query and runs the lexical filter scan.
// No tokens means an empty leg, not an error.
func (r *Retriever) keywordLeg(ctx context.Context, query string, limit int) []store.ScoredRecord {
	tokens := TokenizeQuery(query)
	if len(tokens) == 0 {
		return nil
	}

	legCtx, cancel := r.legContext(ctx)
	defer cancel()

	results, err := r.store.LexicalSearch(legCtx, r.collection, tokens, limit)
	if err != nil {
		slog.Warn("keyword_leg_degraded", slog.String("error", err.Error()))
		return nil
	}
	return results
}

func (r *Retriever) legContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.cfg.LegTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
