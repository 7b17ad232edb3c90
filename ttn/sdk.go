package ttn

import (
	"context"

	ttnsdk "github.com/TheThingsNetwork/go-app-sdk"
	"github.com/TheThingsNetwork/ttn/core/types"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/wifittn/metrics"
)

type SDKConfig struct {
	AppName       string
	ClientVersion string
	AppID         string
	AppAccessKey  string
}

// HandleMessage handles message from the TTN v2 SDK
func (h *Handler) HandleMessage(ctx context.Context, msg *types.UplinkMessage) Outcome {
	return h.Handle(ctx, metrics.ReceivedViaTTNSDK, msg.DevID, msg.PayloadRaw)
}

// RunSDK subscribes to all devices uplinks of the TTN v2 application until ctx is done
func (h *Handler) RunSDK(ctx context.Context, cfg SDKConfig) error {
	config := ttnsdk.NewCommunityConfig(cfg.AppName)
	config.ClientVersion = cfg.ClientVersion

	// Create a new SDK client for the application
	client := config.NewClient(cfg.AppID, cfg.AppAccessKey)
	defer client.Close()

	// Start Publish/Subscribe client (MQTT)
	pubsub, err := client.PubSub()
	if err != nil {
		level.Error(h.logger).Log("msg", "can't get pub/sub", "error", err)
		return err
	}
	defer pubsub.Close()

	// This also stops existing subscriptions
	allDevicesPubSub := pubsub.AllDevices()
	defer allDevicesPubSub.Close()

	msgs, err := allDevicesPubSub.SubscribeUplink()
	if err != nil {
		level.Error(h.logger).Log("msg", "can't subscribe to events", "error", err)
		return err
	}
	level.Info(h.logger).Log("msg", "subscribed to uplink messages", "app_id", cfg.AppID)

	for {
		select {
		case <-ctx.Done():
			level.Info(h.logger).Log("msg", "unsubscribing to uplink messages")

			if err = allDevicesPubSub.UnsubscribeUplink(); err != nil {
				level.Error(h.logger).Log("msg", "can't unsubscribe from uplink", "error", err)
				return err
			}
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			h.HandleMessage(ctx, msg)
		}
	}
}
