// Package api exposes the registry search pipeline over HTTP, guarded
// by service tokens, per-caller rate limits and a hard request timeout.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twentylab/handelsregister/lib/bundesland"
	"github.com/twentylab/handelsregister/lib/scrapers/handelsregister"
	"github.com/twentylab/handelsregister/services/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("handelsregister/services/api")

// Searcher is the orchestrator as seen from the façade.
type Searcher interface {
	Search(ctx context.Context, query registry.Query) ([]handelsregister.Company, error)
}

type Options struct {
	// signing secret for service tokens, falls back to the insecure default
	Secret string
	// per-caller request budget, e.g. 100 per hour
	RateLimit Limit
	// wall-clock bound on one search pipeline run
	Timeout time.Duration
	// overrides the default in-memory limiter backend
	Limiters LimiterStore
}

type Service struct {
	searcher  Searcher
	tokens    TokenIssuer
	limiters  LimiterStore
	rateLimit Limit
	timeout   time.Duration
}

func NewService(searcher Searcher, opts Options) *Service {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RateLimit.Requests == 0 {
		opts.RateLimit = Limit{Requests: 100, Window: time.Hour}
	}
	limiters := opts.Limiters
	if limiters == nil {
		limiters = NewMemoryLimiterStore(opts.RateLimit)
	}
	return &Service{
		searcher:  searcher,
		tokens:    NewTokenIssuer(opts.Secret),
		limiters:  limiters,
		rateLimit: opts.RateLimit,
		timeout:   opts.Timeout,
	}
}

func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/token", s.handleToken)
	r.Get("/api/bundesland", s.handleResolveState)
	r.Get("/api/bundesland/list", s.handleListStates)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/docs", s.handleDocs)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Use(s.limitRate)
		r.Get("/api/search", s.handleSearch)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requireToken verifies the service token before any pipeline work.
// Both "Authorization: Bearer <token>" and a bare token are accepted.
func (s *Service) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Missing authentication token")
			return
		}

		token := header
		if strings.HasPrefix(header, "Bearer") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}
		}

		_, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %s", err))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitRate enforces the per-caller request budget before any pipeline
// work begins.
func (s *Service) limitRate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.Allow(callerIdentity(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "Rate limit exceeded",
				"message": s.rateLimit.String(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ServiceName string `json:"service_name"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.ServiceName == "" {
		writeError(w, http.StatusBadRequest, "Missing service_name in request body")
		return
	}

	token, err := s.tokens.Issue(body.ServiceName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"service": body.ServiceName,
	})
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true"
}

func (s *Service) parseSearchQuery(r *http.Request) (registry.Query, string) {
	params := r.URL.Query()

	keywords := params.Get("keywords")
	if keywords == "" {
		return registry.Query{}, "Missing required parameter: keywords"
	}

	modeParam := params.Get("mode")
	if modeParam == "" {
		modeParam = string(handelsregister.MatchAll)
	}
	mode, err := handelsregister.ParseMatchMode(modeParam)
	if err != nil {
		return registry.Query{}, fmt.Sprintf(
			"Invalid mode parameter. Must be one of: %s",
			strings.Join(handelsregister.MatchModes(), ", "),
		)
	}

	var states []bundesland.Code
	if raw := params.Get("bundesland"); raw != "" {
		var invalid []string
		for _, token := range strings.Split(raw, ",") {
			code, ok := bundesland.Resolve(token)
			if !ok {
				invalid = append(invalid, strings.ToUpper(strings.TrimSpace(token)))
				continue
			}
			states = append(states, code)
		}
		if len(invalid) > 0 {
			var valid []string
			for _, s := range bundesland.List() {
				valid = append(valid, string(s.Code))
			}
			return registry.Query{}, fmt.Sprintf(
				"Invalid bundesland code(s): %s. Valid codes: %s",
				strings.Join(invalid, ", "),
				strings.Join(valid, ", "),
			)
		}
	}

	return registry.Query{
		Keywords:    keywords,
		Mode:        mode,
		States:      states,
		BypassCache: parseBool(params.Get("force")),
		Debug:       parseBool(params.Get("debug")),
	}, ""
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api:Search")
	defer span.End()

	query, validationError := s.parseSearchQuery(r)
	if validationError != "" {
		span.SetStatus(codes.Error, "validation failed")
		writeError(w, http.StatusBadRequest, validationError)
		return
	}

	type searchResult struct {
		companies []handelsregister.Company
		err       error
	}

	// the pipeline runs detached so a hanging portal exchange cannot
	// hold the caller past the timeout; on timeout the wait is
	// abandoned, the underlying fetch is not forcibly stopped and may
	// still complete (and populate the cache) on its own
	results := make(chan searchResult, 1)
	go func() {
		companies, err := s.searcher.Search(context.WithoutCancel(ctx), query)
		results <- searchResult{companies: companies, err: err}
	}()

	select {
	case result := <-results:
		if result.err != nil {
			span.RecordError(result.err)
			span.SetStatus(codes.Error, "search failed")
			writeError(w, http.StatusInternalServerError, result.err.Error())
			return
		}
		companies := result.companies
		if companies == nil {
			companies = []handelsregister.Company{}
		}
		writeJSON(w, http.StatusOK, companies)
	case <-time.After(s.timeout):
		span.SetStatus(codes.Error, "search timed out")
		slog.WarnContext(ctx, "search abandoned after timeout",
			"keywords", query.Keywords,
			"timeout", s.timeout,
		)
		writeError(w, http.StatusGatewayTimeout, fmt.Sprintf(
			"Request exceeded timeout of %d seconds",
			int(s.timeout.Seconds()),
		))
	}
}

func (s *Service) handleResolveState(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: name")
		return
	}

	code, ok := bundesland.Resolve(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("Unknown district name: %s", name),
			"hint":  `Try German names (e.g., "Berlin", "Bayern") or English names (e.g., "Bavaria", "North Rhine-Westphalia")`,
		})
		return
	}

	nameDE, _ := bundesland.Name(code)
	writeJSON(w, http.StatusOK, map[string]string{
		"code":       string(code),
		"name_de":    nameDE,
		"input":      name,
		"form_field": bundesland.FormField(code),
	})
}

func (s *Service) handleListStates(w http.ResponseWriter, r *http.Request) {
	type stateEntry struct {
		Code      string `json:"code"`
		NameDE    string `json:"name_de"`
		FormField string `json:"form_field"`
	}

	states := []stateEntry{}
	for _, state := range bundesland.List() {
		states = append(states, stateEntry{
			Code:      string(state.Code),
			NameDE:    state.NameDE,
			FormField: bundesland.FormField(state.Code),
		})
	}

	writeJSON(w, http.StatusOK, states)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "handelsregister-api",
		"config": map[string]any{
			"rate_limit":      s.rateLimit.String(),
			"request_timeout": int(s.timeout.Seconds()),
		},
	})
}
