package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/notification/pkg/request"
	"github.com/Alturino/storefront/notification/pkg/response"
)

// Client posts admin notifications to the notify-admin endpoint behind a
// circuit breaker.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response.NotifyAdmin]
}

func NewClient(cfg config.Notification) *Client {
	failures := cfg.Breaker.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.ApiKey,
		timeout: cfg.Timeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker: gobreaker.NewCircuitBreaker[response.NotifyAdmin](gobreaker.Settings{
			Name:        "notify-admin",
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		}),
	}
}

// NotifyAdmin reports success only for a 2xx reply carrying success=true.
// Every other outcome wraps ErrNotificationFailed.
func (cl *Client) NotifyAdmin(c context.Context, req request.NotifyAdmin) (response.NotifyAdmin, error) {
	c, span := otel.Tracer.Start(c, "Client NotifyAdmin")
	defer span.End()

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "Client NotifyAdmin").
		Str(log.KeyOrderID, req.OrderData.OrderID.String()).
		Str(log.KeyProcess, "notifying admin").
		Logger()

	logger.Info().Msg("notifying admin")
	res, err := cl.breaker.Execute(func() (response.NotifyAdmin, error) {
		return cl.post(c, req)
	})
	metrics.Notifications.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		err = fmt.Errorf("%w orderId=%s with error=%w", inErrors.ErrNotificationFailed, req.OrderData.OrderID.String(), err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return res, err
	}
	logger.Info().Str("contactMethod", res.ContactMethod).Msg("notified admin")
	return res, nil
}

func (cl *Client) post(c context.Context, req request.NotifyAdmin) (response.NotifyAdmin, error) {
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, cl.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return response.NotifyAdmin{}, fmt.Errorf("failed marshaling request body with error=%w", err)
	}

	httpReq, err := http.NewRequestWithContext(c, http.MethodPost, cl.url, bytes.NewReader(body))
	if err != nil {
		return response.NotifyAdmin{}, fmt.Errorf("failed creating request with error=%w", err)
	}
	httpReq.Header.Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	if cl.apiKey != "" {
		httpReq.Header.Set(inHttp.HeaderAuthorization, "Bearer "+cl.apiKey)
	}
	if requestID := log.RequestIDFromContext(c); requestID != "" {
		httpReq.Header.Set(inHttp.HeaderRequestID, requestID)
	}

	resp, err := cl.http.Do(httpReq)
	if err != nil {
		return response.NotifyAdmin{}, fmt.Errorf("failed posting notification with error=%w", err)
	}
	defer resp.Body.Close()

	res := response.NotifyAdmin{}
	decodeErr := json.NewDecoder(resp.Body).Decode(&res)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("notify-admin answered statusCode=%d error=%s message=%s", resp.StatusCode, res.Error, res.Message)
	}
	if decodeErr != nil {
		return res, fmt.Errorf("failed decoding response body with error=%w", decodeErr)
	}
	if !res.Success {
		return res, fmt.Errorf("notify-admin answered success=false message=%s", res.Message)
	}
	return res, nil
}
