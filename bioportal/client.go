package bioportal

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/logger"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
)

const (
	DefaultRestURL = "http://data.bioontology.org"
	DefaultTimeout = 30 * time.Second
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient httpClient
	restURL    string
	apiKey     string
	obqLogger  zerolog.Logger
}

type Option func(*Client)

func WithRestURL(restURL string) Option {
	return func(c *Client) {
		c.restURL = strings.TrimRight(restURL, "/")
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.obqLogger = l
	}
}

func NewClient(httpClient httpClient, apiKey string, opts ...Option) *Client {
	client := &Client{
		httpClient: httpClient,
		restURL:    DefaultRestURL,
		apiKey:     apiKey,
		obqLogger:  logger.NewLogger("BioPortal client"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewHTTPClient returns a client that gives up on any call after timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

func (c *Client) RestURL() string {
	return c.restURL
}

func (c *Client) SearchURL(term types.Term, scope types.OntologyScope) string {
	query := url.Values{}
	query.Set("q", string(term))
	if !scope.IsEmpty() {
		query.Set("ontologies", scope.Param())
	}
	return c.restURL + "/search?" + query.Encode()
}

func (c *Client) SubmissionsURL(acronym string) string {
	return c.restURL + "/ontologies/" + url.PathEscape(acronym) + "/submissions"
}

// FetchJSON issues an authenticated GET and decodes the body into out.
// Failures are not retried.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Authorization", "apikey token="+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.obqLogger.Debug().Str("url", rawURL).Msg("GET")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	if err = json.Unmarshal(body, out); err != nil {
		return &DecodeError{URL: rawURL, Err: err}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, pageURL string) (SearchPage, error) {
	var page SearchPage
	err := c.FetchJSON(ctx, pageURL, &page)
	return page, err
}

func (c *Client) Submissions(ctx context.Context, acronym string) ([]Submission, error) {
	var submissions []Submission
	err := c.FetchJSON(ctx, c.SubmissionsURL(acronym), &submissions)
	return submissions, err
}

func (c *Client) ChildCount(ctx context.Context, childrenURL string) (int, error) {
	var page childrenPage
	if err := c.FetchJSON(ctx, childrenURL, &page); err != nil {
		return 0, err
	}
	return page.TotalCount, nil
}

// Parents returns the preferred labels of the classes behind parentsURL.
func (c *Client) Parents(ctx context.Context, parentsURL string) ([]string, error) {
	var parents []parentClass
	if err := c.FetchJSON(ctx, parentsURL, &parents); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(parents))
	for _, parent := range parents {
		if parent.PrefLabel == "" {
			labels = append(labels, types.NotAvailable)
			continue
		}
		labels = append(labels, parent.PrefLabel)
	}
	return labels, nil
}
