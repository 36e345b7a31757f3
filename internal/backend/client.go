package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/lector/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 2
	baseRetryDelay    = 500 * time.Millisecond
)

// Options tune the client; zero values use defaults
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = unlimited
	MaxRetries        int     // retries after the first attempt on 5xx
}

// Client talks to the reading backend over its JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a new backend API client
func NewClient(baseURL string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:    limiter,
		maxRetries: retries,
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
}

// BaseURL returns the backend root URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newBody builds a request body; called per attempt so retries resend it
type newBody func() (io.Reader, string, error)

func jsonBody(v any) newBody {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// doRequest performs an HTTP request against the backend.
// Includes retry logic with exponential backoff for 5xx server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, body newBody) ([]byte, error) {
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		var reader io.Reader
		contentType := ""
		if body != nil {
			r, ct, err := body()
			if err != nil {
				return nil, err
			}
			reader, contentType = r, ct
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		c.logger.Debug("backend request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("backend request failed", "error", err, "url", reqURL)
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendOffline, err)
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("%w: %d - %s", domain.ErrBackendRejected, resp.StatusCode, errorDetail(data))
			c.logger.Warn("backend server error, will retry",
				"status", resp.StatusCode,
				"body", string(data),
				"attempt", attempt,
				"maxRetries", c.maxRetries,
				"path", path,
			)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotSignedIn, errorDetail(data))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d - %s", domain.ErrBackendRejected, resp.StatusCode, errorDetail(data))
		}

		return data, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}

// errorDetail extracts the "detail" field of an error reply, or the raw body
func errorDetail(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := c.doRequest(ctx, http.MethodPost, path, jsonBody(in))
	if err != nil {
		return err
	}
	return decode(data, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Health checks that the backend is running
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.getJSON(ctx, "/", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("%w: unexpected health status %q", domain.ErrBackendRejected, resp.Status)
	}
	return nil
}

// Upload sends a PDF or text file for extraction and returns its text
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" && ext != ".txt" {
		return "", domain.ErrUnsupportedFile
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	body := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("failed to finish form: %w", err)
		}
		return &buf, w.FormDataContentType(), nil
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/upload", body)
	if err != nil {
		return "", err
	}
	var resp uploadResponse
	if err := decode(data, &resp); err != nil {
		return "", err
	}
	c.logger.Info("document uploaded", "file", filepath.Base(path), "chars", len(resp.Text))
	return resp.Text, nil
}

// Synthesize converts text to audio plus sentence timing marks
func (c *Client) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Synthesis, error) {
	var resp ttsResponse
	err := c.postJSON(ctx, "/tts", ttsRequest{
		Text:  req.Text,
		Voice: req.Voice,
		Rate:  req.Rate,
		Pitch: req.Pitch,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AudioURL == "" {
		return nil, fmt.Errorf("%w: no audio_url in response", domain.ErrBackendRejected)
	}
	return &domain.Synthesis{
		AudioURL:  c.resolveURL(resp.AudioURL),
		Marks:     mapMarks(resp.Marks),
		CreatedAt: time.Now(),
	}, nil
}

// resolveURL makes a relative audio path absolute against the backend
func (c *Client) resolveURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.baseURL + "/" + strings.TrimLeft(u, "/")
}

// Voices lists synthesis voices sorted by locale, then display name
func (c *Client) Voices(ctx context.Context) ([]domain.Voice, error) {
	var voices []domain.Voice
	if err := c.getJSON(ctx, "/voices", &voices); err != nil {
		return nil, err
	}
	sort.SliceStable(voices, func(i, j int) bool {
		if voices[i].Locale != voices[j].Locale {
			return voices[i].Locale < voices[j].Locale
		}
		return voices[i].Label() < voices[j].Label()
	})
	return voices, nil
}

// Translate translates text into targetLang
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	var resp translateResponse
	if err := c.postJSON(ctx, "/translate", translateRequest{Text: text, TargetLang: targetLang}, &resp); err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// Summarize returns a summary of about sentences sentences
func (c *Client) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	var resp summarizeResponse
	if err := c.postJSON(ctx, "/summarize", summarizeRequest{Text: text, SentencesCount: sentences}, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// SyncUser registers the user with the backend and returns their plan
func (c *Client) SyncUser(ctx context.Context, user domain.User) (domain.Plan, error) {
	var resp userSyncResponse
	err := c.postJSON(ctx, "/auth/sync", userSyncRequest{ID: user.ID, Email: user.Email, Name: user.Name}, &resp)
	if err != nil {
		return domain.PlanFree, err
	}
	if !resp.Success {
		return domain.PlanFree, fmt.Errorf("%w: %s", domain.ErrBackendRejected, resp.Error)
	}
	return domain.ParsePlan(resp.Plan), nil
}

// CreateSubscription starts a subscription for a payment-provider plan
func (c *Client) CreateSubscription(ctx context.Context, planID string) (*domain.Subscription, error) {
	var resp createSubscriptionResponse
	if err := c.postJSON(ctx, "/subscription/create", createSubscriptionRequest{PlanID: planID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackendRejected, resp.Error)
	}
	return &domain.Subscription{ID: resp.SubscriptionID, KeyID: resp.KeyID}, nil
}

// VerifySubscription confirms a completed checkout with the backend
func (c *Client) VerifySubscription(ctx context.Context, p domain.PaymentConfirmation) error {
	var resp verifySubscriptionResponse
	err := c.postJSON(ctx, "/subscription/verify", verifySubscriptionRequest{
		PaymentID:      p.PaymentID,
		SubscriptionID: p.SubscriptionID,
		Signature:      p.Signature,
		PlanName:       p.PlanName,
		UserID:         p.UserID,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", domain.ErrBackendRejected, resp.Error)
	}
	return nil
}

// IsOffline reports whether err means the backend could not be reached
func IsOffline(err error) bool {
	return errors.Is(err, domain.ErrBackendOffline)
}
