package ttn

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/wifittn/metrics"
)

type MQTTConfig struct {
	// Broker tcp://host:1883 or ssl://host:8883
	Broker   string
	ClientID string
	// Username is the TTN application id appid@tenant
	Username string
	// Password is a TTN API key
	Password string
	// Topic v3/appid@tenant/devices/+/up
	Topic string
	QoS   byte
}

// MQTTSubscriber receives TTN v3 uplinks from the MQTT integration
type MQTTSubscriber struct {
	handler *Handler
	cfg     MQTTConfig
	client  mqtt.Client
}

func NewMQTTSubscriber(h *Handler, cfg MQTTConfig) *MQTTSubscriber {
	if cfg.Topic == "" {
		cfg.Topic = fmt.Sprintf("v3/%s/devices/+/up", cfg.Username)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		level.Warn(h.logger).Log("msg", "mqtt connection lost", "error", err)
	})

	return &MQTTSubscriber{
		handler: h,
		cfg:     cfg,
		client:  mqtt.NewClient(opts),
	}
}

// Run subscribes to uplinks until ctx is done
func (s *MQTTSubscriber) Run(ctx context.Context) error {
	logger := s.handler.logger

	token := s.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			level.Error(logger).Log("msg", "can't connect to mqtt broker", "broker", s.cfg.Broker, "error", err)
			return err
		}
	case <-ctx.Done():
		// stops a pending connection attempt
		s.client.Disconnect(250)
		return nil
	}
	defer s.client.Disconnect(250)

	token = s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(c mqtt.Client, m mqtt.Message) {
		s.HandleMessage(ctx, m)
	})
	if token.Wait() && token.Error() != nil {
		level.Error(logger).Log("msg", "can't subscribe to uplinks", "topic", s.cfg.Topic, "error", token.Error())
		return token.Error()
	}
	level.Info(logger).Log("msg", "subscribed to mqtt uplink messages", "topic", s.cfg.Topic)

	<-ctx.Done()

	level.Info(logger).Log("msg", "unsubscribing to mqtt uplink messages")
	token = s.client.Unsubscribe(s.cfg.Topic)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		level.Error(logger).Log("msg", "can't unsubscribe from uplinks", "error", token.Error())
		return token.Error()
	}
	return nil
}

// HandleMessage handles one MQTT uplink message
func (s *MQTTSubscriber) HandleMessage(ctx context.Context, m mqtt.Message) Outcome {
	o := s.handler.HandleJSON(ctx, metrics.ReceivedViaMQTT, m.Payload())
	level.Debug(s.handler.logger).Log("msg", "handled mqtt uplink", "topic", m.Topic(), "status", o.Status)
	return o
}
