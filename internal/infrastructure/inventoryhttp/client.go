// Package inventoryhttp calls the inventory service over its REST API.
package inventoryhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const peer = "inventory-service"

type productBody struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Brand             string    `json:"brand"`
	Price             int64     `json:"price"`
	AvailableQuantity int       `json:"availableQuantity"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client implements inventory.Service. Deadlines come from the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     observability.Tracer
	extCounter observability.Counter
	extHist    observability.Histogram
}

var _ dominv.Service = (*Client)(nil)

func New(baseURL string, httpClient *http.Client, tel observability.Observability) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tracer:     tel.Tracer(),
		extCounter: tel.Metrics().Counter(observability.MExternalRequests),
		extHist:    tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*dominv.Product, error) {
	var body productBody
	if err := c.do(ctx, "GetProduct", http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), id, nil, &body); err != nil {
		return nil, err
	}
	return &dominv.Product{
		ID:                body.ID,
		Code:              body.Code,
		Name:              body.Name,
		Description:       body.Description,
		Category:          body.Category,
		Brand:             body.Brand,
		Price:             body.Price,
		AvailableQuantity: body.AvailableQuantity,
		UpdatedAt:         body.UpdatedAt,
	}, nil
}

func (c *Client) Reserve(ctx context.Context, id int64, units int) (int, error) {
	var remaining int
	err := c.do(ctx, "Reserve", http.MethodPost, "/api/products/order/"+strconv.FormatInt(id, 10), id, units, &remaining)
	return remaining, err
}

func (c *Client) Release(ctx context.Context, id int64, units int) (int, error) {
	var remaining int
	err := c.do(ctx, "Release", http.MethodPost, "/api/products/cancel/"+strconv.FormatInt(id, 10), id, units, &remaining)
	return remaining, err
}

func (c *Client) do(ctx context.Context, op, method, path string, productID int64, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "Inventory."+op,
		attribute.String("peer.service", peer),
		attribute.String("http.method", method),
		attribute.Int64("product.id", productID),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		c.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", op),
			observability.L("outcome", outcome),
		)
		c.extHist.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", op),
		)
	}()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("inventoryhttp: encode %s: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("inventoryhttp: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", dominv.ErrUnavailable, op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return dominv.NotFoundError(productID)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", dominv.ErrInsufficientStock, readError(resp.Body))
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", dominv.ErrInvalidQuantity, readError(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned %d", dominv.ErrUnavailable, op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", dominv.ErrUnavailable, op, err)
	}
	return nil
}

func readError(r io.Reader) string {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.Error == "" {
		return "no detail"
	}
	return body.Error
}
