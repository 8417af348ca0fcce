package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every transport, status or decode failure of Client.
var ErrUnavailable = errors.New("inventory unavailable")

// Client calls the inventory service over HTTP. It never retries and fails
// closed: no stock on reads, false on writes.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	tracer  trace.Tracer
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, tracer trace.Tracer, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: tracer,
		log:    log,
	}
}

type quantityReq struct {
	Quantity int64 `json:"quantity"`
}

type successResp struct {
	Success bool `json:"success"`
}

func (c *Client) GetStock(ctx context.Context, productID int64) (int64, error) {
	var out StockLevel
	if err := c.call(ctx, "getStock", http.MethodGet, productID, "", nil, &out); err != nil {
		return 0, err
	}
	return out.Available, nil
}

func (c *Client) UpdateStock(ctx context.Context, productID, quantity int64) (bool, error) {
	return c.mutate(ctx, "updateStock", http.MethodPut, productID, "", quantity)
}

func (c *Client) ReserveStock(ctx context.Context, productID, quantity int64) (bool, error) {
	return c.mutate(ctx, "reserveStock", http.MethodPost, productID, "/reserve", quantity)
}

func (c *Client) ReleaseStock(ctx context.Context, productID, quantity int64) (bool, error) {
	return c.mutate(ctx, "releaseStock", http.MethodPost, productID, "/release", quantity)
}

// Ping reports whether the inventory service answers its liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health/live", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory liveness returned %s", resp.Status)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, op, method string, productID int64, suffix string, quantity int64) (bool, error) {
	var out successResp
	if err := c.call(ctx, op, method, productID, suffix, quantityReq{Quantity: quantity}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *Client) call(ctx context.Context, op, method string, productID int64, suffix string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "inventory."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	url := c.baseURL + "/inventory/" + strconv.FormatInt(productID, 10) + suffix
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
		attribute.Int64("product.id", productID),
	)

	err := c.do(ctx, method, url, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("inventory call failed",
			zap.String("op", op),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return fmt.Errorf("%w: %s product %d: %v", ErrUnavailable, op, productID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
