package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/notification/pkg/request"
)

const (
	KindAmqp  = "amqp"
	KindRedis = "redis"
)

type ContactInfo struct {
	WhatsappNumber string `json:"whatsappNumber"`
	PickupLocation string `json:"pickupLocation"`
	City           string `json:"city"`
	State          string `json:"state"`
}

// AdminNotification is what admins receive for every new order.
type AdminNotification struct {
	OrderData   request.OrderData  `json:"orderData"`
	UserInfo    request.UserInfo   `json:"userInfo"`
	CartItems   []request.CartItem `json:"cartItems"`
	Timestamp   time.Time          `json:"timestamp"`
	ContactInfo ContactInfo        `json:"contactInfo"`
}

type Publisher interface {
	Publish(c context.Context, notification AdminNotification) error
}

type AmqpPublisher struct {
	channel *amqp.Channel
	queue   string
}

func NewAmqpPublisher(channel *amqp.Channel, queue string) *AmqpPublisher {
	return &AmqpPublisher{channel: channel, queue: queue}
}

func (p *AmqpPublisher) Publish(c context.Context, notification AdminNotification) error {
	logger := zerolog.Ctx(c).With().
		Str(log.KeyTag, "AmqpPublisher Publish").
		Str(log.KeyQueue, p.queue).
		Logger()

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed marshaling notification with error=%w", err)
	}

	logger.Debug().Msg("publishing notification")
	err = p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    notification.OrderData.OrderID.String(),
		Timestamp:    notification.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed publishing to queue=%s with error=%w", p.queue, err)
	}
	logger.Debug().Msg("published notification")
	return nil
}

// RedisPublisher fans notifications out over a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(c context.Context, notification AdminNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed marshaling notification with error=%w", err)
	}
	if err = p.client.Publish(c, p.channel, body).Err(); err != nil {
		return fmt.Errorf("failed publishing to channel=%s with error=%w", p.channel, err)
	}
	zerolog.Ctx(c).Debug().
		Str(log.KeyTag, "RedisPublisher Publish").
		Str(log.KeyQueue, p.channel).
		Msg("published notification")
	return nil
}
