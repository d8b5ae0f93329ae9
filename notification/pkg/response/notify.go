package response

import (
	"time"

	"github.com/google/uuid"
)

// NotifyAdmin is the reply of the notify-admin endpoint. Error is only set
// when Success is false.
type NotifyAdmin struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	OrderID       uuid.UUID `json:"orderId,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	ContactMethod string    `json:"contactMethod,omitempty"`
	Error         string    `json:"error,omitempty"`
}

const (
	MessageNotified = "Order submitted successfully! Admin has been notified and will contact you via WhatsApp shortly."
	ErrorNotify     = "Failed to notify admin"
)
