// Package partner calls the external partner redemption API.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// redeemPath is appended to the configured base URL.
const redeemPath = "/api/redeem"

// maxResponseBytes caps how much of a partner response is kept.
const maxResponseBytes = 64 << 10

// ErrUpstream is returned for any transport error or non-2xx response.
var ErrUpstream = errors.New("partner: redeem call failed")

// RedeemRequest is the body sent to the partner.
type RedeemRequest struct {
	PhoneNumber   string  `json:"phoneNumber"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
	PartnerID     uint64  `json:"partnerId"`
}

// RedeemResponse carries what the partner returned on success.
type RedeemResponse struct {
	StatusCode int
	Body       []byte // JSON body when the partner returned one, otherwise nil
}

// Redeemer is implemented by partner clients.
type Redeemer interface {
	Redeem(ctx context.Context, idempotencyKey string, req RedeemRequest) (*RedeemResponse, error)
}

// Client is a traced HTTP client for the partner API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    *metrics.Metrics
}

// NewClient returns a Client for baseURL. A zero timeout leaves deadlines to
// the request context.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer:  otel.Tracer("promotion/partner"),
		metrics: m,
	}
}

// Redeem posts the redemption to the partner. The idempotency key lets the
// partner deduplicate retries of the same attempt.
func (c *Client) Redeem(ctx context.Context, idempotencyKey string, body RedeemRequest) (*RedeemResponse, error) {
	endpoint, errURL := url.JoinPath(c.baseURL, redeemPath)
	if errURL != nil {
		return nil, fmt.Errorf("%w: build url: %v", ErrUpstream, errURL)
	}

	ctx, span := c.tracer.Start(ctx, "partner.redeem", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", endpoint),
		attribute.String("http.method", http.MethodPost),
		attribute.Int64("partner.id", int64(body.PartnerID)),
	)

	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return nil, fmt.Errorf("%w: encode body: %v", ErrUpstream, errMarshal)
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		c.metrics.ObservePartner("error", time.Since(start))
		span.RecordError(errDo)
		span.SetStatus(codes.Error, errDo.Error())
		return nil, fmt.Errorf("%w: %v", ErrUpstream, errDo)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObservePartner("rejected", time.Since(start))
		errStatus := fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		span.RecordError(errStatus)
		span.SetStatus(codes.Error, errStatus.Error())
		return nil, errStatus
	}
	c.metrics.ObservePartner("success", time.Since(start))

	out := &RedeemResponse{StatusCode: resp.StatusCode}
	if len(raw) > 0 && json.Valid(raw) {
		out.Body = raw
	}
	return out, nil
}
