package precise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vectorstack/internal/logging"
)

const (
	DefaultBaseURL        = "https://api.vectorstack.ai/precise_search/"
	DefaultEmbeddingsURL  = "https://api.vectorstack.ai/embeddings"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 16 * time.Second

	// APIKeyEnv is consulted when no key is passed to NewClient.
	APIKeyEnv = "VECTORSTACKAI_API_KEY"

	userAgent = "vectorstack-go/0.3"
)

// Client talks to the PreciseSearch and embeddings services. It is safe for
// concurrent use.
type Client struct {
	apiKey         string
	baseURL        string
	embeddingsURL  string
	http           *http.Client
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key. Without it the VECTORSTACKAI_API_KEY
// environment variable is used.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL points the index API at another host, e.g. a local emulator.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithEmbeddingsURL overrides the embeddings endpoint.
func WithEmbeddingsURL(u string) Option {
	return func(c *Client) { c.embeddingsURL = u }
}

// WithHTTPClient replaces the default http.Client. WithTimeout is ignored
// when a client is supplied.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets the total number of attempts for retryable failures
// (rate limits, unavailability, timeouts). Values below 1 are treated as 1.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the first and the largest wait between attempts.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// WithLogger attaches a logger. Requests are logged at debug level and
// retries at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client. It fails with an authentication error when no
// API key can be found.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:        DefaultBaseURL,
		embeddingsURL:  DefaultEmbeddingsURL,
		timeout:        DefaultTimeout,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv(APIKeyEnv)
	}
	if c.apiKey == "" {
		return nil, &APIError{
			Kind: ErrAuthentication,
			Message: "No API key provided. You can pass it with precise.WithAPIKey(<API-KEY>), " +
				"or set the environment variable " + APIKeyEnv + "=<API-KEY>. " +
				"Visit https://www.vectorstack.ai to sign up for a free API key.",
		}
	}

	base, err := normalizeBaseURL(c.baseURL)
	if err != nil {
		return nil, err
	}
	c.baseURL = base

	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	if c.maxBackoff < c.initialBackoff {
		c.maxBackoff = c.initialBackoff
	}
	c.logger = logging.OrNop(c.logger)
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	s := u.String()
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s, nil
}

func (c *Client) endpoint(action string, name ...string) string {
	if len(name) == 0 {
		return c.baseURL + action
	}
	return c.baseURL + action + "/" + url.PathEscape(name[0])
}

// doJSON sends one logical call, retrying retryable failures with jittered
// exponential backoff until maxRetries attempts have been made.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
	}

	requestID := uuid.NewString()
	attempt := 0
	operation := func() error {
		attempt++
		err := c.send(ctx, op, method, endpoint, requestID, payload, out)
		if err == nil {
			return nil
		}
		if isRetryable(err) && attempt < c.maxRetries {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying request",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

func (c *Client) send(ctx context.Context, op, method, endpoint, requestID string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &APIError{Kind: ErrTimeout, Message: err.Error(), RequestID: requestID}
		}
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	c.logger.Debug("precise request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		return errorFromResponse(resp.StatusCode, resp.Header, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return fmt.Errorf("failed to parse %s response (body: %s): %w", op, preview, err)
	}
	return nil
}
