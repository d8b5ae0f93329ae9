package infra

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
)

// NewBrokerChannel dials RabbitMQ and declares the durable queue admin
// notifications are published to.
func NewBrokerChannel(c context.Context, cfg config.Broker) (*amqp.Connection, *amqp.Channel) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "main NewBrokerChannel").
		Str(log.KeyQueue, cfg.Queue).
		Str(log.KeyProcess, "dialing broker").
		Logger()

	logger.Info().Msg("dialing broker")
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		err = fmt.Errorf("failed dialing broker with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("dialed broker")

	logger = logger.With().Str(log.KeyProcess, "opening channel").Logger()
	logger.Info().Msg("opening channel")
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		err = fmt.Errorf("failed opening channel with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("opened channel")

	logger = logger.With().Str(log.KeyProcess, "declaring queue").Logger()
	logger.Info().Msg("declaring queue")
	_, err = ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		err = fmt.Errorf("failed declaring queue=%s with error=%w", cfg.Queue, err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("declared queue")

	return conn, ch
}
