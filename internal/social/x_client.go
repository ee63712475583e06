package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/models"
	"github.com/STRATINT/engager/internal/platform"
	"golang.org/x/time/rate"
)

const (
	searchMaxResults = "100"
	searchExpansions = "author_id"
	searchTweetField = "created_at,lang,author_id"
	searchUserFields = "public_metrics,username"
)

// APIError is a non-throttling error response from the X API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api returned status %d: %s", e.Status, e.Message)
}

// XClient handles X API v2 interactions for one authenticated account. It
// implements platform.Searcher and platform.Actor.
type XClient struct {
	baseURL    string
	searchMode string
	signer     *oauth1Signer
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
	logger     *slog.Logger

	mu     sync.Mutex
	userID string
}

// NewXClient creates a client from configuration. Requests are spaced to stay
// under cfg.RequestsPerMinute.
func NewXClient(cfg config.XConfig, logger *slog.Logger) *XClient {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &XClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		searchMode: cfg.SearchMode,
		signer: &oauth1Signer{
			consumerKey:    cfg.APIKey,
			consumerSecret: cfg.APISecret,
			token:          cfg.AccessToken,
			tokenSecret:    cfg.AccessTokenSecret,
			nonce:          randomNonce,
			now:            time.Now,
		},
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(limit, 1),
		retry:      DefaultRetryPolicy(),
		logger:     logger,
		userID:     cfg.UserID,
	}
}

type apiErrors struct {
	Errors []struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"errors"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (a apiErrors) message() string {
	for _, e := range a.Errors {
		if e.Message != "" {
			return e.Message
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	if a.Detail != "" {
		return a.Detail
	}
	return a.Title
}

type searchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Lang      string `json:"lang"`
		CreatedAt string `json:"created_at"`
		AuthorID  string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			PublicMetrics *struct {
				FollowersCount int64 `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// SearchPage is one page of search results. It remembers the query and the
// pagination token needed to fetch the following page.
type SearchPage struct {
	client     *XClient
	query      string
	nextToken  string
	candidates []models.Candidate
}

// Candidates returns the page's posts in API order.
func (p *SearchPage) Candidates() []models.Candidate {
	return p.candidates
}

// Next fetches the following page, or returns (nil, nil) when the search is
// exhausted.
func (p *SearchPage) Next(ctx context.Context) (platform.Page, error) {
	if p.nextToken == "" {
		return nil, nil
	}
	return p.client.searchPage(ctx, p.query, p.nextToken)
}

// Search returns the first page of recent posts matching query.
func (c *XClient) Search(ctx context.Context, query string) (platform.Page, error) {
	return c.searchPage(ctx, query, "")
}

func (c *XClient) searchPage(ctx context.Context, query, token string) (platform.Page, error) {
	params := url.Values{
		"query":        {query},
		"max_results":  {searchMaxResults},
		"expansions":   {searchExpansions},
		"tweet.fields": {searchTweetField},
		"user.fields":  {searchUserFields},
	}
	if token != "" {
		params.Set("next_token", token)
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/2/tweets/search/"+c.searchMode, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	if len(resp.Data) == 0 && resp.Meta.NextToken == "" {
		return nil, nil
	}

	return &SearchPage{
		client:     c,
		query:      query,
		nextToken:  resp.Meta.NextToken,
		candidates: resp.candidates(),
	}, nil
}

func (r *searchResponse) candidates() []models.Candidate {
	authors := make(map[string]models.Author, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		a := models.Author{ID: u.ID, Username: u.Username}
		if u.PublicMetrics != nil {
			n := u.PublicMetrics.FollowersCount
			a.FollowersCount = &n
		}
		authors[u.ID] = a
	}

	out := make([]models.Candidate, 0, len(r.Data))
	for _, t := range r.Data {
		c := models.Candidate{ID: t.ID, Text: t.Text, Lang: t.Lang}

		if a, ok := authors[t.AuthorID]; ok {
			c.Author = a
		} else {
			c.Author = models.Author{ID: t.AuthorID}
		}

		if t.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, t.CreatedAt); err == nil {
				c.CreatedAt = &ts
			} else {
				c.RawCreatedAt = t.CreatedAt
			}
		}
		out = append(out, c)
	}
	return out
}

// Like likes a post as the authenticated user.
func (c *XClient) Like(ctx context.Context, postID string) error {
	me, err := c.actingUser(ctx)
	if err != nil {
		return err
	}

	var resp struct {
		Data struct {
			Liked bool `json:"liked"`
		} `json:"data"`
	}
	body := map[string]string{"tweet_id": postID}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+url.PathEscape(me)+"/likes", nil, body, &resp); err != nil {
		return fmt.Errorf("like %s: %w", postID, err)
	}
	if !resp.Data.Liked {
		return fmt.Errorf("like %s: not confirmed", postID)
	}
	return nil
}

// Follow follows a user as the authenticated user. A pending follow request
// on a protected account counts as success.
func (c *XClient) Follow(ctx context.Context, userID string) error {
	me, err := c.actingUser(ctx)
	if err != nil {
		return err
	}

	var resp struct {
		Data struct {
			Following     bool `json:"following"`
			PendingFollow bool `json:"pending_follow"`
		} `json:"data"`
	}
	body := map[string]string{"target_user_id": userID}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+url.PathEscape(me)+"/following", nil, body, &resp); err != nil {
		return fmt.Errorf("follow %s: %w", userID, err)
	}
	if !resp.Data.Following && !resp.Data.PendingFollow {
		return fmt.Errorf("follow %s: not confirmed", userID)
	}
	return nil
}

// Me returns the id and username of the authenticated account.
func (c *XClient) Me(ctx context.Context) (id, username string, err error) {
	var resp struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, nil, &resp); err != nil {
		return "", "", fmt.Errorf("lookup authenticated user: %w", err)
	}
	if resp.Data.ID == "" {
		return "", "", errors.New("lookup authenticated user: empty id")
	}
	return resp.Data.ID, resp.Data.Username, nil
}

// actingUser returns the configured user id, resolving it once through
// /2/users/me when unset. Rate limits pass through so the caller backs off;
// other failures make the action unavailable.
func (c *XClient) actingUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID != "" {
		return c.userID, nil
	}

	id, username, err := c.Me(ctx)
	if err != nil {
		if platform.IsRateLimited(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", platform.ErrActionUnavailable, err)
	}

	c.logger.Info("resolved acting user", "user_id", id, "username", username)
	c.userID = id
	return id, nil
}

// do sends one signed request, retrying transient failures, and decodes the
// JSON response into out.
func (c *XClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to build url: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return Retry(ctx, c.retry, func() error {
		return c.attempt(ctx, method, u, payload, out)
	})
}

func (c *XClient) attempt(ctx context.Context, method string, u *url.URL, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.signer.authorize(method, u))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &TransientError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("x api call", "method", method, "path", u.Path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.NewRateLimitError(
			&APIError{Status: resp.StatusCode, Message: errorMessage(data)},
			retryAfter(resp.Header, c.signer.now()),
		)
	case resp.StatusCode >= 500:
		return &TransientError{Err: &APIError{Status: resp.StatusCode, Message: errorMessage(data)}}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var e apiErrors
	if err := json.Unmarshal(data, &e); err == nil {
		if msg := e.message(); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}

// retryAfter reads the x-rate-limit-reset header, an epoch second.
func retryAfter(h http.Header, now time.Time) time.Duration {
	reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return 0
	}
	if d := time.Unix(reset, 0).Sub(now); d > 0 {
		return d
	}
	return 0
}
