package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/drluca/shopstream/orderservice/config"
)

const (
	publishTimeout    = 5 * time.Second
	reconnectInterval = 5 * time.Second
)

// RabbitMQManager publishes order lifecycle events. The order service
// is a pure producer: downstream services (inventory, notifications)
// consume from the exchange declared here.
type RabbitMQManager struct {
	config          config.Config
	connection      *amqp.Connection
	producerChan    *amqp.Channel
	notifyConnClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	isReady         bool
	isConnecting    bool
	connectMutex    chan struct{}
	done            chan struct{}
}

func NewRabbitMQManager(cfg config.Config) (*RabbitMQManager, error) {
	rmq := &RabbitMQManager{
		config:       cfg,
		connectMutex: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	rmq.connectMutex <- struct{}{}

	if err := rmq.connect(); err != nil {
		go rmq.handleReconnect()
		return nil, fmt.Errorf("initial RabbitMQ connection failed: %w. Will attempt to reconnect", err)
	}
	go rmq.handleReconnect()
	return rmq, nil
}

func (rmq *RabbitMQManager) connect() error {
	if rmq.isConnecting {
		return errors.New("connection attempt in progress")
	}
	rmq.isConnecting = true
	defer func() { rmq.isConnecting = false }()

	<-rmq.connectMutex
	defer func() { rmq.connectMutex <- struct{}{} }()

	log.Info().Str("url", rmq.config.RabbitMQURL).Msg("Attempting to connect to RabbitMQ")
	conn, err := amqp.Dial(rmq.config.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	rmq.connection = conn
	rmq.notifyConnClose = make(chan *amqp.Error)
	rmq.connection.NotifyClose(rmq.notifyConnClose)

	if err := rmq.setupProducerChannel(); err != nil {
		return fmt.Errorf("failed to setup producer channel: %w", err)
	}

	rmq.isReady = true
	log.Info().Msg("RabbitMQ connected and producer channel initialized successfully")
	return nil
}

func (rmq *RabbitMQManager) setupProducerChannel() error {
	var err error
	rmq.producerChan, err = rmq.connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open producer channel: %w", err)
	}

	if err := rmq.producerChan.Confirm(false); err != nil {
		return fmt.Errorf("producer channel could not be put into confirm mode: %w", err)
	}
	rmq.notifyConfirm = make(chan amqp.Confirmation, 1)
	rmq.producerChan.NotifyPublish(rmq.notifyConfirm)

	log.Info().Str("exchange", rmq.config.OrderExchangeName).Str("type", rmq.config.OrderExchangeType).Msg("Declaring order events exchange")
	err = rmq.producerChan.ExchangeDeclare(
		rmq.config.OrderExchangeName, // name
		rmq.config.OrderExchangeType, // type
		true,                         // durable
		false,                        // auto-deleted
		false,                        // internal
		false,                        // no-wait
		nil,                          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", rmq.config.OrderExchangeName, err)
	}
	return nil
}

func (rmq *RabbitMQManager) PublishMessage(ctx context.Context, routingKey string, payload interface{}) error {
	if !rmq.isReady {
		return errors.New("producer not ready")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = rmq.producerChan.Publish(
		rmq.config.OrderExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case confirm := <-rmq.notifyConfirm:
		if confirm.Ack {
			log.Debug().Str("routingKey", routingKey).Msg("Message published and confirmed")
			return nil
		}
		return errors.New("message published but not confirmed")
	case <-time.After(publishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rmq *RabbitMQManager) handleReconnect() {
	for {
		select {
		case <-rmq.done:
			return
		case amqpErr := <-rmq.notifyConnClose:
			rmq.isReady = false
			if amqpErr != nil {
				log.Warn().Err(amqpErr).Msg("RabbitMQ connection closed. Reconnecting.")
			}
			for {
				if err := rmq.connect(); err == nil {
					break
				}
				select {
				case <-rmq.done:
					return
				case <-time.After(reconnectInterval):
				}
			}
		}
	}
}

func (rmq *RabbitMQManager) Close() {
	close(rmq.done)
	if rmq.connection != nil && !rmq.connection.IsClosed() {
		rmq.connection.Close()
	}
}
