// Package handelsregister drives the advanced-search flow of the
// shared company-registry portal of the German federal states
// (www.handelsregister.de) and extracts company records from the
// returned result pages. The portal has no API; this package fills
// out and submits its search forms the way a browser would.
package handelsregister

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/twentylab/handelsregister/lib/bundesland"
	"github.com/twentylab/handelsregister/lib/restyutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("handelsregister/scraper")

const DefaultBaseUrl = "https://www.handelsregister.de"

// MatchMode selects the portal's keyword semantics.
type MatchMode string

const (
	// all keywords must appear
	MatchAll MatchMode = "all"
	// at least one keyword must appear
	MatchMin MatchMode = "min"
	// exact company name
	MatchExact MatchMode = "exact"
)

// the portal encodes match modes as numeric option values
var matchModeCodes = map[MatchMode]int{
	MatchAll:   1,
	MatchMin:   2,
	MatchExact: 3,
}

func MatchModes() []string {
	return []string{string(MatchAll), string(MatchMin), string(MatchExact)}
}

func ParseMatchMode(s string) (MatchMode, error) {
	mode := MatchMode(s)
	if _, ok := matchModeCodes[mode]; !ok {
		return "", fmt.Errorf("invalid match mode %q, must be one of: all, min, exact", s)
	}
	return mode, nil
}

// SearchQuery describes one advanced search against the portal.
type SearchQuery struct {
	Keywords string
	Mode     MatchMode
	States   []bundesland.Code
}

var (
	// the portal start page could not be reached at all
	ErrConnect = errors.New("could not reach the registry portal")
	// a required control disappeared, the portal's form contract changed
	ErrFormChanged = errors.New("registry portal form layout changed")
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	startPage *goquery.Document
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to 10 seconds, matching the portal's slow but steady pace
	Timeout time.Duration
	// optional destination for raw request/response dumps in debug mode
	DebugOutput restyutil.DebugOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 10
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	// the exact header set a real browser sends; the portal rejects
	// clients that look too mechanical
	client.SetHeaders(map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Safari/605.1.15",
		"Accept-Language": "en-GB,en;q=0.9",
		// no brotli here: the transport only undoes gzip and deflate
		"Accept-Encoding": "gzip, deflate",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Connection":      "keep-alive",
	})

	restyutil.InstrumentClient(client, tracer, opts.DebugOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// Open navigates to the portal start page and establishes the session
// cookies every later submission depends on. Any failure here is fatal
// for the whole search, there is no retry.
func (c *Client) Open(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Open")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch start page")
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "start page returned error status")
		return fmt.Errorf("%w: status %d", ErrConnect, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse start page html")
		return err
	}

	c.startPage = doc
	return nil
}

// SubmitSearch runs the portal's two-step search protocol and returns
// the raw result document. The first submission simulates clicking the
// "erweiterte Suche" link to land on the advanced form; the second
// fills in keywords, match mode and state filters and submits.
//
// A state filter whose checkbox is missing from the form is skipped and
// reported in the returned warnings, it never fails the search. Missing
// keyword or match-mode controls do fail it: they mean the portal's
// form contract changed underneath us.
func (c *Client) SubmitSearch(ctx context.Context, query SearchQuery) (raw []byte, warnings []string, err error) {
	ctx, span := tracer.Start(ctx, "client:SubmitSearch")
	defer span.End()

	if c.startPage == nil {
		return nil, nil, fmt.Errorf("session not opened, call Open first")
	}

	navi, err := findForm(c.startPage, "naviForm")
	if err != nil {
		span.SetStatus(codes.Error, "navigation form missing")
		return nil, nil, fmt.Errorf("%w: %v", ErrFormChanged, err)
	}
	// the same two hidden fields the portal's javascript adds when the
	// advanced search link is clicked
	navi.Inject("naviForm:erweiterteSucheLink", "naviForm:erweiterteSucheLink")
	navi.Inject("target", "erweiterteSucheLink")

	res, err := navi.Submit(ctx, c.Http, c.BaseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open advanced search")
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse advanced search html")
		return nil, nil, err
	}
	slog.DebugContext(ctx, "opened advanced search", "title", doc.Find("title").First().Text())

	search, err := findForm(doc, "form")
	if err != nil {
		span.SetStatus(codes.Error, "search form missing")
		return nil, nil, fmt.Errorf("%w: %v", ErrFormChanged, err)
	}

	err = search.Set("form:schlagwoerter", query.Keywords)
	if err != nil {
		span.SetStatus(codes.Error, "keyword control missing")
		return nil, nil, fmt.Errorf("%w: %v", ErrFormChanged, err)
	}
	modeCode, ok := matchModeCodes[query.Mode]
	if !ok {
		return nil, nil, fmt.Errorf("invalid match mode %q", query.Mode)
	}
	err = search.Set("form:schlagwortOptionen", strconv.Itoa(modeCode))
	if err != nil {
		span.SetStatus(codes.Error, "match mode control missing")
		return nil, nil, fmt.Errorf("%w: %v", ErrFormChanged, err)
	}

	for _, state := range query.States {
		field := fmt.Sprintf("form:%s", bundesland.FormField(state))
		err := search.Set(field, "on")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not set state filter %s", state))
			slog.DebugContext(ctx, "state filter control missing", "state", state, "field", field)
		}
	}

	res, err = search.Submit(ctx, c.Http, c.BaseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit search form")
		return nil, warnings, err
	}
	slog.DebugContext(ctx, "search submitted", "status", res.StatusCode(), "bytes", len(res.Body()))

	return res.Body(), warnings, nil
}
