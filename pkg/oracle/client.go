package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configure the live client.
type Options struct {
	BaseURL           string
	Model             string
	APIKey            string
	Timeout           time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	RequestsPerMinute int
	Temperature       float64

	// Per-operation preview lengths in bytes; <= 0 sends full content.
	ClassifyPreview  int
	PartitionPreview int
	ComparePreview   int
}

// Client calls an OpenAI-compatible chat completions endpoint. Every
// call is rate limited through a shared token bucket and retried with
// exponential backoff on transient failure.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient validates opts and returns a live client.
func NewClient(opts Options, log *zap.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("oracle base URL is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("oracle model is required")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}

	// The bucket starts full with a minute's capacity, refilled evenly,
	// matching a per-minute quota upstream.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(float64(opts.RequestsPerMinute)/60.0),
			opts.RequestsPerMinute)
	}

	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		log:     log,
	}, nil
}

// Classify asks whether one content is worth keeping and what it is.
func (c *Client) Classify(ctx context.Context, item Item) (Classification, error) {
	system, user := classifyPrompt(item, c.opts.ClassifyPreview)
	text, attempts, err := c.complete(ctx, "classify", system, user)
	if err != nil {
		return Classification{Attempts: attempts}, err
	}
	var out Classification
	if perr := parseJSONBlock(text, &out); perr != nil {
		return Classification{Attempts: attempts}, &CallError{
			Op: "classify", Attempts: attempts, Permanent: true, Err: perr,
		}
	}
	out.Attempts = attempts
	return out, nil
}

// Compare asks whether a and b are versions of the same logical file and
// which is newer.
func (c *Client) Compare(ctx context.Context, a, b Item) (Comparison, error) {
	system, user := comparePrompt(a, b, c.opts.ComparePreview)
	text, attempts, err := c.complete(ctx, "compare", system, user)
	if err != nil {
		return Comparison{Attempts: attempts}, err
	}
	var out Comparison
	if perr := parseJSONBlock(text, &out); perr != nil {
		return Comparison{Attempts: attempts}, &CallError{
			Op: "compare", Attempts: attempts, Permanent: true, Err: perr,
		}
	}
	out.Newer = normalizeVerdict(out.Newer)
	out.Attempts = attempts
	return out, nil
}

// Partition asks the oracle to cluster all items in one call.
func (c *Client) Partition(ctx context.Context, items []Item) ([]ProposedGroup, error) {
	system, user := partitionPrompt(items, c.opts.PartitionPreview)
	text, attempts, err := c.complete(ctx, "partition", system, user)
	if err != nil {
		return nil, err
	}
	var out struct {
		Groups []ProposedGroup `json:"groups"`
	}
	if perr := parseJSONBlock(text, &out); perr != nil {
		return nil, &CallError{
			Op: "partition", Attempts: attempts, Permanent: true, Err: perr,
		}
	}
	return out.Groups, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete performs one chat completion: rate-limit wait, request,
// classification of the response, and retry with doubling backoff on
// transient failure. It returns the completion text and the number of
// attempts made.
func (c *Client) complete(ctx context.Context, op, system, user string) (string, int, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", 0, &CallError{Op: op, Permanent: true, Err: err}
	}

	attempts := 0
	backoff := c.opts.BackoffBase
	var lastErr error
	for attempts < c.opts.MaxAttempts {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return "", attempts, &CallError{Op: op, Attempts: attempts, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", attempts, &CallError{Op: op, Attempts: attempts, Err: err}
		}
		attempts++

		respBody, status, err := c.post(ctx, body)
		if err != nil {
			if ctx.Err() != nil {
				return "", attempts, &CallError{Op: op, Attempts: attempts, Err: err}
			}
			// Network-level failure, worth another attempt.
			lastErr = err
			c.log.Debug("oracle attempt failed",
				zap.String("op", op), zap.Int("attempt", attempts), zap.Error(err))
			continue
		}

		switch {
		case status == http.StatusOK:
			text, perr := chatText(respBody)
			if perr != nil {
				return "", attempts, &CallError{Op: op, Attempts: attempts, Permanent: true, Err: perr}
			}
			return text, attempts, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return "", attempts, &CallError{
				Op: op, Attempts: attempts, Permanent: true, Fatal: true,
				Err: fmt.Errorf("authentication rejected: status %d: %s", status, snippet(respBody)),
			}
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("status %d: %s", status, snippet(respBody))
			c.log.Debug("oracle attempt failed",
				zap.String("op", op), zap.Int("attempt", attempts),
				zap.Int("status", status))
		default:
			// Remaining 4xx are request problems retries cannot fix.
			return "", attempts, &CallError{
				Op: op, Attempts: attempts, Permanent: true,
				Err: fmt.Errorf("status %d: %s", status, snippet(respBody)),
			}
		}
	}

	// Retries are spent; the verdict on this call will never change.
	return "", attempts, &CallError{Op: op, Attempts: attempts, Permanent: true, Err: lastErr}
}

// post performs a single HTTP attempt, returning the raw body and status.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, int, error) {
	url := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

// chatText extracts the first choice's message content.
func chatText(respBody []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// snippet bounds an error body for logs and messages.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func normalizeVerdict(v Verdict) Verdict {
	switch Verdict(strings.ToLower(strings.TrimSpace(string(v)))) {
	case NewerA, "file_a", "file a":
		return NewerA
	case NewerB, "file_b", "file b":
		return NewerB
	default:
		return NewerUnknown
	}
}
