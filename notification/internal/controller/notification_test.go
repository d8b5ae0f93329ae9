package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderRequest "github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/notification/internal/publisher"
	"github.com/Alturino/storefront/notification/internal/service"
	"github.com/Alturino/storefront/notification/pkg/request"
	"github.com/Alturino/storefront/notification/pkg/response"
)

type recordingPublisher struct {
	published []publisher.AdminNotification
	err       error
}

func (p *recordingPublisher) Publish(c context.Context, n publisher.AdminNotification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}

func validBody() request.NotifyAdmin {
	return request.NotifyAdmin{
		OrderData: request.OrderData{
			OrderID:     uuid.New(),
			TotalAmount: decimal.NewFromInt(30000),
			Status:      "pending",
			ShippingAddress: orderRequest.Shipping{
				WhatsappNumber: "+2348012345678",
				PickupLocation: "Yaba",
				City:           "Lagos",
				State:          "Lagos",
			},
		},
		UserInfo: request.UserInfo{UserID: uuid.New(), FullName: "Ada Obi", Email: "ada@example.com"},
		CartItems: []request.CartItem{{
			ProductID:   uuid.New(),
			ProductName: "Ankara Shirt",
			Quantity:    3,
			Price:       decimal.NewFromInt(10000),
			TotalPrice:  decimal.NewFromInt(30000),
		}},
	}
}

func TestNotifyAdmin(t *testing.T) {
	type testCase struct {
		name           string
		body           interface{}
		publishErr     error
		expectedStatus int
		expectedReply  func(t *testing.T, reply response.NotifyAdmin, p *recordingPublisher)
	}

	body := validBody()
	tests := []testCase{
		{
			name:           "given valid order should publish and reply with contact method",
			body:           body,
			expectedStatus: http.StatusOK,
			expectedReply: func(t *testing.T, reply response.NotifyAdmin, p *recordingPublisher) {
				assert.True(t, reply.Success)
				assert.Equal(t, response.MessageNotified, reply.Message)
				assert.Equal(t, body.OrderData.OrderID, reply.OrderID)
				assert.Equal(t, "WhatsApp: +2348012345678", reply.ContactMethod)
				assert.False(t, reply.Timestamp.IsZero())
				require.Len(t, p.published, 1)
				assert.Equal(t, "Yaba", p.published[0].ContactInfo.PickupLocation)
			},
		},
		{
			name:           "given publish failure should reply 500",
			body:           body,
			publishErr:     errors.New("broker down"),
			expectedStatus: http.StatusInternalServerError,
			expectedReply: func(t *testing.T, reply response.NotifyAdmin, p *recordingPublisher) {
				assert.False(t, reply.Success)
				assert.Equal(t, response.ErrorNotify, reply.Error)
				assert.Contains(t, reply.Message, "broker down")
			},
		},
		{
			name:           "given no cart items should reject",
			body:           request.NotifyAdmin{OrderData: body.OrderData, UserInfo: body.UserInfo},
			expectedStatus: http.StatusBadRequest,
			expectedReply: func(t *testing.T, reply response.NotifyAdmin, p *recordingPublisher) {
				assert.False(t, reply.Success)
				assert.Empty(t, p.published)
			},
		},
		{
			name:           "given malformed json should reject",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
			expectedReply: func(t *testing.T, reply response.NotifyAdmin, p *recordingPublisher) {
				assert.Equal(t, response.ErrorNotify, reply.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPublisher{err: tt.publishErr}
			router := mux.NewRouter()
			AttachNotificationController(router, service.NewNotificationService(p))

			var buf bytes.Buffer
			if s, ok := tt.body.(string); ok {
				buf.WriteString(s)
			} else {
				require.NoError(t, json.NewEncoder(&buf).Encode(tt.body))
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathNotifyAdmin, &buf))
			assert.Equal(t, tt.expectedStatus, rec.Code)

			reply := response.NotifyAdmin{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
			tt.expectedReply(t, reply, p)
		})
	}
}
