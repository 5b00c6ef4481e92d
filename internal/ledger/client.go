package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config configures the ledger endpoint.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Client posts ingestion records to the external ledger. Writes are not
// retried.
type Client struct {
	http   *resty.Client
	url    string
	logger *zap.Logger
}

// NewClient creates a ledger client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mailagent/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		url:    cfg.URL,
		logger: logger,
	}
}

// Record submits rec and reports whether the ledger accepted it. Any 2xx
// status is acceptance; everything else is logged and reported as false.
func (c *Client) Record(ctx context.Context, rec Record) bool {
	if err := c.Submit(ctx, rec); err != nil {
		c.logger.Warn("ledger write failed",
			zap.String("message_id", rec.MessageID),
			zap.String("attachment", rec.AttachmentName),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Submit posts rec and returns a *LedgerError on failure.
func (c *Client) Submit(ctx context.Context, rec Record) error {
	if c.url == "" {
		return &LedgerError{
			MessageID:      rec.MessageID,
			AttachmentName: rec.AttachmentName,
			Err:            errors.New("ledger URL is not configured"),
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rec).
		Post(c.url)
	if err != nil {
		return &LedgerError{MessageID: rec.MessageID, AttachmentName: rec.AttachmentName, Err: err}
	}
	if !resp.IsSuccess() {
		return &LedgerError{
			MessageID:      rec.MessageID,
			AttachmentName: rec.AttachmentName,
			StatusCode:     resp.StatusCode(),
			Err:            fmt.Errorf("unexpected response %q", resp.Status()),
		}
	}
	return nil
}
