package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/notification/pkg/request"
	"github.com/Alturino/storefront/notification/pkg/response"
)

func notifyRequest() request.NotifyAdmin {
	return request.NotifyAdmin{
		OrderData: request.OrderData{OrderID: uuid.New(), TotalAmount: decimal.NewFromInt(30000), Status: "pending"},
		UserInfo:  request.UserInfo{UserID: uuid.New(), FullName: "Ada Obi", Email: "ada@example.com"},
		CartItems: []request.CartItem{{ProductID: uuid.New(), ProductName: "Ankara Shirt", Quantity: 3, Price: decimal.NewFromInt(10000)}},
	}
}

func newClient(url string) *Client {
	return NewClient(config.Notification{
		URL:     url,
		ApiKey:  "anon-key",
		Timeout: time.Second,
		Breaker: config.Breaker{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 2},
	})
}

func TestNotifyAdmin(t *testing.T) {
	type testCase struct {
		name        string
		handler     http.HandlerFunc
		expectedErr bool
	}

	tests := []testCase{
		{
			name: "given success reply should succeed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
				req := request.NotifyAdmin{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				json.NewEncoder(w).Encode(response.NotifyAdmin{
					Success:       true,
					Message:       response.MessageNotified,
					OrderID:       req.OrderData.OrderID,
					ContactMethod: "WhatsApp: +234",
				})
			},
		},
		{
			name: "given 500 reply should fail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(response.NotifyAdmin{Success: false, Error: response.ErrorNotify, Message: "boom"})
			},
			expectedErr: true,
		},
		{
			name: "given 200 reply with success false should fail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(response.NotifyAdmin{Success: false, Message: "not today"})
			},
			expectedErr: true,
		},
		{
			name: "given non json reply should fail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			expectedErr: true,
		},
		{
			name: "given slow reply should time out",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(3 * time.Second):
				case <-r.Context().Done():
				}
			},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			res, err := newClient(server.URL).NotifyAdmin(context.Background(), notifyRequest())
			if tt.expectedErr {
				assert.ErrorIs(t, err, inErrors.ErrNotificationFailed)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, "WhatsApp: +234", res.ContactMethod)
		})
	}
}

func TestNotifyAdminBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cl := newClient(server.URL)
	for range 2 {
		_, err := cl.NotifyAdmin(context.Background(), notifyRequest())
		assert.Error(t, err)
	}

	_, err := cl.NotifyAdmin(context.Background(), notifyRequest())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, inErrors.ErrNotificationFailed)
	assert.Equal(t, int32(2), calls.Load(), "open breaker does not call the endpoint")
}
