package syncsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftsync/internal/version"
)

// Client talks to the sync coordinator. Every call is individually time bounded
// and retried only when no response was received.
type Client struct {
	client  *req.Client
	baseURL string
}

// Response is a received HTTP response, whatever its status
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return io.ErrUnexpectedEOF
	}
	return jsonUnmarshal(r.Body, v)
}

// New creates a coordinator client
func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	cfg.setDefaults()

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryInterval(func(_ *req.Response, attempt int) time.Duration {
			return backoffDelay(cfg.RetryBaseDelay, attempt)
		}).
		SetCommonRetryCondition(func(_ *req.Response, err error) bool {
			return shouldRetry(err)
		}).
		SetCommonRetryHook(func(_ *req.Response, err error) {
			slog.Debug("coordinator request retry", "error", err)
		}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		WrapRoundTripFunc(limitResponseSize(cfg.MaxResponseBytes))

	if cfg.AuthToken != "" {
		client.SetCommonBearerAuthToken(cfg.AuthToken)
	}

	return &Client{
		client:  client,
		baseURL: cfg.BaseURL,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends a request and returns the response for any received status.
// The error is non-nil only when no response could be received.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.send(ctx, method, path, body, nil, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body any, pathParams, headers map[string]string) (*Response, error) {
	r := c.client.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}
	if pathParams != nil {
		r.SetPathParams(pathParams)
	}
	if headers != nil {
		r.SetHeaders(headers)
	}

	resp, err := r.Send(method, path)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   resp.Bytes(),
	}, nil
}

// backoffDelay is base * 2^(attempt-1), capped. attempt starts at 1 for the first retry.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= DefaultMaxRetryDelay {
			return DefaultMaxRetryDelay
		}
	}
	return delay
}

// only network level failures are retried. a received response, whatever
// its status, is final. so is a response that blew the size cap.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResponseTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func limitResponseSize(limit int64) req.RoundTripWrapperFunc {
	return func(rt req.RoundTripper) req.RoundTripFunc {
		return func(r *req.Request) (*req.Response, error) {
			resp, err := rt.RoundTrip(r)
			if err != nil || resp.Response == nil {
				return resp, err
			}

			if resp.ContentLength > limit {
				resp.Body.Close()
				return resp, fmt.Errorf("%w: content-length %d exceeds %d", ErrResponseTooLarge, resp.ContentLength, limit)
			}

			if resp.Body != nil {
				resp.Body = &cappedBody{rc: resp.Body, remaining: limit}
			}
			body, err := resp.ToBytes()
			if err != nil {
				return resp, err
			}
			if int64(len(body)) > limit {
				return resp, fmt.Errorf("%w: %d bytes exceeds %d", ErrResponseTooLarge, len(body), limit)
			}
			return resp, nil
		}
	}
}

type cappedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, ErrResponseTooLarge
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.rc.Close()
}
