package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twentylab/handelsregister/lib/bundesland"
	"github.com/twentylab/handelsregister/lib/scrapers/handelsregister"
	"github.com/twentylab/handelsregister/services/registry"
)

type fakeSearcher struct {
	search func(ctx context.Context, query registry.Query) ([]handelsregister.Company, error)
}

func (f fakeSearcher) Search(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
	return f.search(ctx, query)
}

func noResults(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
	return []handelsregister.Company{}, nil
}

func setup(t *testing.T, searcher Searcher, opts Options) *Service {
	t.Helper()
	if opts.Secret == "" {
		opts.Secret = "test-secret"
	}
	return NewService(searcher, opts)
}

func issueToken(t *testing.T, service *Service, serviceName string) string {
	t.Helper()
	token, err := service.tokens.Issue(serviceName)
	require.NoError(t, err)
	return token
}

func doRequest(service *Service, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	service.Router().ServeHTTP(recorder, req)
	return recorder
}

func errorBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestTokenEndpoint(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})

	req := httptest.NewRequest(
		http.MethodPost, "/api/token",
		strings.NewReader(`{"service_name": "my-service"}`),
	)
	res := doRequest(service, req)
	require.Equal(t, http.StatusOK, res.Code)

	body := errorBody(t, res)
	require.Equal(t, "my-service", body["service"])
	require.NotEmpty(t, body["token"])

	svc, err := service.tokens.Verify(body["token"])
	require.NoError(t, err)
	require.Equal(t, "my-service", svc)
}

func TestTokenEndpointMissingServiceName(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})

	res := doRequest(service, httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "Missing service_name in request body", errorBody(t, res)["error"])
}

func TestSearchAuthentication(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})
	token := issueToken(t, service, "tester")

	testCases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bearer token", "Bearer " + token, http.StatusOK},
		{"bare token", token, http.StatusOK},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"tampered token", "Bearer " + token + "x", http.StatusUnauthorized},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Gasag+AG", nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}
			res := doRequest(service, req)
			require.Equal(t, test.code, res.Code)
			if test.code == http.StatusUnauthorized {
				require.NotEmpty(t, errorBody(t, res)["error"])
			}
		})
	}
}

func TestSearchValidation(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})
	token := issueToken(t, service, "tester")

	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			"missing keywords",
			"/api/search",
			"Missing required parameter: keywords",
		},
		{
			"invalid mode",
			"/api/search?keywords=x&mode=fuzzy",
			"Invalid mode parameter. Must be one of: all, min, exact",
		},
		{
			"invalid bundesland",
			"/api/search?keywords=x&bundesland=BE,XX,YY",
			"Invalid bundesland code(s): XX, YY. Valid codes: BW, BY, BE, BR, HB, HH, HE, MV, NI, NW, RP, SL, SN, ST, SH, TH",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, test.url, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			res := doRequest(service, req)
			require.Equal(t, http.StatusBadRequest, res.Code)
			require.Equal(t, test.expected, errorBody(t, res)["error"])
		})
	}
}

func TestSearchPassesQueryThrough(t *testing.T) {
	var seen registry.Query
	searcher := fakeSearcher{search: func(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
		seen = query
		return []handelsregister.Company{{Name: "Gasag AG", State: "Berlin"}}, nil
	}}
	service := setup(t, searcher, Options{})
	token := issueToken(t, service, "tester")

	req := httptest.NewRequest(
		http.MethodGet,
		"/api/search?keywords=Gasag+AG&mode=exact&bundesland=BE,HH&force=true&debug=true",
		nil,
	)
	req.Header.Set("Authorization", "Bearer "+token)
	res := doRequest(service, req)
	require.Equal(t, http.StatusOK, res.Code)

	require.Equal(t, "Gasag AG", seen.Keywords)
	require.Equal(t, handelsregister.MatchExact, seen.Mode)
	require.Equal(t, []bundesland.Code{bundesland.BE, bundesland.HH}, seen.States)
	require.True(t, seen.BypassCache)
	require.True(t, seen.Debug)

	var companies []handelsregister.Company
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &companies))
	require.Len(t, companies, 1)
	require.Equal(t, "Gasag AG", companies[0].Name)
}

func TestSearchEmptyResultIsArray(t *testing.T) {
	searcher := fakeSearcher{search: func(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
		return nil, nil
	}}
	service := setup(t, searcher, Options{})
	token := issueToken(t, service, "tester")

	req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Nobody", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := doRequest(service, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, "[]", res.Body.String())
}

func TestSearchUpstreamFailure(t *testing.T) {
	searcher := fakeSearcher{search: func(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
		return nil, fmt.Errorf("%w: connection refused", handelsregister.ErrConnect)
	}}
	service := setup(t, searcher, Options{})
	token := issueToken(t, service, "tester")

	req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Gasag+AG", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := doRequest(service, req)
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, errorBody(t, res)["error"], "could not reach the registry portal")
}

func TestSearchTimeout(t *testing.T) {
	searcher := fakeSearcher{search: func(ctx context.Context, query registry.Query) ([]handelsregister.Company, error) {
		time.Sleep(time.Second)
		return []handelsregister.Company{}, nil
	}}
	service := setup(t, searcher, Options{Timeout: time.Millisecond * 50})
	token := issueToken(t, service, "tester")

	req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Gasag+AG", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := doRequest(service, req)
	require.Equal(t, http.StatusGatewayTimeout, res.Code)
	require.Equal(t, "Request exceeded timeout of 0 seconds", errorBody(t, res)["error"])
}

func TestSearchRateLimit(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{
		RateLimit: Limit{Requests: 2, Window: time.Hour},
	})
	token := issueToken(t, service, "tester")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Gasag+AG", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, doRequest(service, req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/search?keywords=Gasag+AG", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := doRequest(service, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.Equal(t, "Rate limit exceeded", errorBody(t, res)["error"])
	require.Equal(t, "2 per hour", errorBody(t, res)["message"])
}

func TestResolveState(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})

	res := doRequest(service, httptest.NewRequest(http.MethodGet, "/api/bundesland?name=Bavaria", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := errorBody(t, res)
	require.Equal(t, "BY", body["code"])
	require.Equal(t, "Bayern", body["name_de"])
	require.Equal(t, "Bavaria", body["input"])
	require.Equal(t, "bundeslandBY", body["form_field"])

	res = doRequest(service, httptest.NewRequest(http.MethodGet, "/api/bundesland?name=unknowncity", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
	body = errorBody(t, res)
	require.Equal(t, "Unknown district name: unknowncity", body["error"])
	require.NotEmpty(t, body["hint"])

	res = doRequest(service, httptest.NewRequest(http.MethodGet, "/api/bundesland", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestListStates(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{})

	res := doRequest(service, httptest.NewRequest(http.MethodGet, "/api/bundesland/list", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var states []map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &states))
	require.Len(t, states, 16)
	require.Equal(t, "BW", states[0]["code"])
	require.Equal(t, "Baden-Württemberg", states[0]["name_de"])
	require.Equal(t, "bundeslandBW", states[0]["form_field"])
	require.Equal(t, "TH", states[15]["code"])
}

func TestHealthAndDocs(t *testing.T) {
	service := setup(t, fakeSearcher{search: noResults}, Options{
		RateLimit: Limit{Requests: 100, Window: time.Hour},
		Timeout:   time.Second * 30,
	})

	res := doRequest(service, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Config  struct {
			RateLimit      string `json:"rate_limit"`
			RequestTimeout int    `json:"request_timeout"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "handelsregister-api", health.Service)
	require.Equal(t, "100 per hour", health.Config.RateLimit)
	require.Equal(t, 30, health.Config.RequestTimeout)

	res = doRequest(service, httptest.NewRequest(http.MethodGet, "/api/docs", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "/api/search")
}
