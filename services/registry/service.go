// Package registry composes the portal session, the on-disk result
// cache and the result extractor into a single search operation.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twentylab/handelsregister/lib/bundesland"
	"github.com/twentylab/handelsregister/lib/scrapers/handelsregister"
	"github.com/twentylab/handelsregister/lib/searchcache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("handelsregister/services/registry")

// PortalSession is the slice of the portal client the orchestrator
// needs; tests substitute a fake.
type PortalSession interface {
	Open(ctx context.Context) error
	SubmitSearch(ctx context.Context, query handelsregister.SearchQuery) (raw []byte, warnings []string, err error)
}

// Query is one search request through the orchestrator.
type Query struct {
	Keywords string
	Mode     handelsregister.MatchMode
	States   []bundesland.Code
	// BypassCache forces a fresh fetch and overwrites the cache entry
	BypassCache bool
	// Debug asks the session for verbose transport output
	Debug bool
}

type Service struct {
	cache       *searchcache.Store
	openSession func(debug bool) (PortalSession, error)
}

// NewService builds an orchestrator over a cache directory and a
// session factory. A fresh session is opened per fetch, the portal's
// server-side conversation state is not reusable across searches.
func NewService(cache *searchcache.Store, openSession func(debug bool) (PortalSession, error)) *Service {
	return &Service{
		cache:       cache,
		openSession: openSession,
	}
}

// Search returns the companies matching the query, serving the raw
// document from the cache when possible. The cache key is the raw
// keyword string only; match mode and state filters are not part of it.
func (s *Service) Search(ctx context.Context, query Query) ([]handelsregister.Company, error) {
	ctx, span := tracer.Start(ctx, "registry:Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("keywords", query.Keywords),
		attribute.Bool("bypass_cache", query.BypassCache),
	)

	if !query.BypassCache {
		raw, ok, err := s.cache.Get(query.Keywords)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read cache")
			return nil, err
		}
		if ok {
			slog.DebugContext(ctx, "serving cached result", "keywords", query.Keywords)
			span.AddEvent("cache hit")
			return handelsregister.Extract(raw)
		}
	}

	raw, err := s.fetch(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal fetch failed")
		return nil, err
	}

	err = s.cache.Put(query.Keywords, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cache")
		return nil, err
	}

	return handelsregister.Extract(raw)
}

func (s *Service) fetch(ctx context.Context, query Query) ([]byte, error) {
	session, err := s.openSession(query.Debug)
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	err = session.Open(ctx)
	if err != nil {
		return nil, err
	}

	raw, warnings, err := session.SubmitSearch(ctx, handelsregister.SearchQuery{
		Keywords: query.Keywords,
		Mode:     query.Mode,
		States:   query.States,
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		slog.WarnContext(ctx, "search warning", "keywords", query.Keywords, "warning", warning)
	}

	return raw, nil
}
