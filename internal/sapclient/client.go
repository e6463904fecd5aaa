package sapclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kec-cse/sap-points/internal/dto"
)

const (
	healthPath        = "/api/sap/health"
	submitEventPath   = "/api/sap/submit-individual-event"
	studentMarksPath  = "/api/sap/student-marks/"
	notificationsPath = "/api/sap/submissions/"

	// DefaultHealthTimeout bounds the preflight request.
	DefaultHealthTimeout = 5 * time.Second

	maxErrorBody = 64 << 10
)

// Config configures the backend client.
type Config struct {
	BaseURL       string
	HealthTimeout time.Duration
	Retry         RetryPolicy
	HTTPClient    *http.Client
	// Sleep replaces the backoff wait between attempts; nil uses a timer.
	Sleep SleepFunc
}

// Client talks to the SAP backend.
type Client struct {
	baseURL       string
	healthTimeout time.Duration
	retry         RetryPolicy
	http          *http.Client
	sleep         SleepFunc
	logger        zerolog.Logger
}

// NewClient constructs a client for the given backend.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		healthTimeout: healthTimeout,
		retry:         cfg.Retry.normalized(),
		http:          httpClient,
		sleep:         cfg.Sleep,
		logger:        logger.With().Str("component", "sap_client").Logger(),
	}
}

// Health performs the reachability preflight. Any failure wraps ErrBackendUnreachable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health returned status %d", ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}

// SubmitEvent delivers a payload under the retry policy.
// Transport failures and attempt timeouts are retried; a non-2xx answer is final.
func (c *Client) SubmitEvent(ctx context.Context, payload Payload) (dto.SubmissionAck, error) {
	var ack dto.SubmissionAck

	attempts, err := c.retry.Do(ctx, c.sleep, func(attemptCtx context.Context, attempt int) error {
		c.logger.Debug().Int("attempt", attempt).Int("bytes", payload.Len()).Int("files", payload.Files()).Msg("sending submission")

		result, err := c.postPayload(attemptCtx, payload)
		if err != nil {
			var rejected *ApplicationRejectedError
			if errors.As(err, &rejected) {
				return permanent(err)
			}
			if attempt < c.retry.MaxAttempts {
				c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", c.retry.Backoff).Msg("submission attempt failed, retrying")
			}
			return err
		}

		ack = result
		return nil
	})
	if err != nil {
		var rejected *ApplicationRejectedError
		if errors.As(err, &rejected) {
			return dto.SubmissionAck{}, err
		}
		return dto.SubmissionAck{}, &SubmissionFailedError{Attempts: attempts, Err: err}
	}

	return ack, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *Client) postPayload(ctx context.Context, payload Payload) (dto.SubmissionAck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitEventPath, payload.Reader())
	if err != nil {
		return dto.SubmissionAck{}, err
	}
	req.Header.Set("Content-Type", payload.ContentType())
	req.ContentLength = int64(payload.Len())

	resp, err := c.http.Do(req)
	if err != nil {
		return dto.SubmissionAck{}, err
	}
	defer drain(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return dto.SubmissionAck{}, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := "Unknown error"
		if decodeErr == nil {
			switch {
			case env.Error != "":
				message = env.Error
			case env.Message != "":
				message = env.Message
			}
		}
		return dto.SubmissionAck{}, &ApplicationRejectedError{StatusCode: resp.StatusCode, Message: message}
	}

	var ack dto.SubmissionAck
	if decodeErr != nil || len(env.Data) == 0 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("submission accepted without a decodable acknowledgment")
		return ack, nil
	}
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		c.logger.Warn().Err(err).Msg("submission accepted without a decodable acknowledgment")
		return dto.SubmissionAck{}, nil
	}
	return ack, nil
}

// FetchStatus returns every submission record of the student.
func (c *Client) FetchStatus(ctx context.Context, email string) ([]dto.SubmissionRecord, error) {
	var records []dto.SubmissionRecord
	if err := c.getJSON(ctx, studentMarksPath+url.PathEscape(email), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchNotifications returns the student's notification list.
func (c *Client) FetchNotifications(ctx context.Context, email string) ([]dto.Notification, error) {
	var items []dto.Notification
	if err := c.getJSON(ctx, notificationsPath+url.PathEscape(email), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchPointsReference returns the conversion table the backend publishes.
func (c *Client) FetchPointsReference(ctx context.Context) (dto.PointsReference, error) {
	var env envelope
	if err := c.getJSON(ctx, "/api/sap/points/reference", &env); err != nil {
		return dto.PointsReference{}, err
	}
	var ref dto.PointsReference
	if err := json.Unmarshal(env.Data, &ref); err != nil {
		return dto.PointsReference{}, fmt.Errorf("%w: decode reference: %w", ErrFeedUnavailable, err)
	}
	return ref, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrFeedUnavailable, err)
	}
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
