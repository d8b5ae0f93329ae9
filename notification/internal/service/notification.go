package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/notification/internal/publisher"
	"github.com/Alturino/storefront/notification/pkg/request"
	"github.com/Alturino/storefront/notification/pkg/response"
)

type NotificationService struct {
	publisher publisher.Publisher
	now       func() time.Time
}

func NewNotificationService(p publisher.Publisher) *NotificationService {
	return &NotificationService{publisher: p, now: time.Now}
}

func (svc *NotificationService) NotifyAdmin(c context.Context, req request.NotifyAdmin) (response.NotifyAdmin, error) {
	c, span := otel.Tracer.Start(c, "NotificationService NotifyAdmin")
	defer span.End()

	shipping := req.OrderData.ShippingAddress
	notification := publisher.AdminNotification{
		OrderData: req.OrderData,
		UserInfo:  req.UserInfo,
		CartItems: req.CartItems,
		Timestamp: svc.now().UTC(),
		ContactInfo: publisher.ContactInfo{
			WhatsappNumber: shipping.WhatsappNumber,
			PickupLocation: shipping.PickupLocation,
			City:           shipping.City,
			State:          shipping.State,
		},
	}

	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "NotificationService NotifyAdmin").
		Str(log.KeyOrderID, req.OrderData.OrderID.String()).
		Logger()

	items := zerolog.Arr()
	for _, item := range req.CartItems {
		items = items.Dict(zerolog.Dict().
			Str("productName", item.ProductName).
			Int32(log.KeyQuantity, item.Quantity).
			Str("totalPrice", item.TotalPrice.String()))
	}
	logger.Info().
		Str("customer", fmt.Sprintf("%s (%s)", req.UserInfo.FullName, req.UserInfo.Email)).
		Str("whatsapp", notification.ContactInfo.WhatsappNumber).
		Str("pickupLocation", notification.ContactInfo.PickupLocation).
		Str("cityState", notification.ContactInfo.City+", "+notification.ContactInfo.State).
		Str(log.KeyTotalAmount, req.OrderData.TotalAmount.String()).
		Array(log.KeyOrderLines, items).
		Msg("new order notification")

	logger = logger.With().Str(log.KeyProcess, "publishing admin notification").Logger()
	logger.Info().Msg("publishing admin notification")
	if err := svc.publisher.Publish(c, notification); err != nil {
		err = fmt.Errorf("failed publishing admin notification with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.NotifyAdmin{Success: false, Error: response.ErrorNotify, Message: err.Error()}, err
	}
	logger.Info().Msg("published admin notification")

	return response.NotifyAdmin{
		Success:       true,
		Message:       response.MessageNotified,
		OrderID:       req.OrderData.OrderID,
		Timestamp:     notification.Timestamp,
		ContactMethod: "WhatsApp: " + notification.ContactInfo.WhatsappNumber,
	}, nil
}
