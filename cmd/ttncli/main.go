package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	ttnsdk "github.com/TheThingsNetwork/go-app-sdk"

	"github.com/akhenakh/wifittn/payload"
)

const appName = "ttncli"

var (
	appID        = flag.String("appID", "", "The things network application ID")
	appAccessKey = flag.String("appAccessKey", "", "The things network access key")
)

func main() {
	flag.Parse()

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	config := ttnsdk.NewCommunityConfig(appName)
	config.ClientVersion = "1.0"

	// Create a new SDK client for the application
	client := config.NewClient(*appID, *appAccessKey)
	defer client.Close()

	// Start Publish/Subscribe client (MQTT)
	pubsub, err := client.PubSub()
	if err != nil {
		log.Fatal("can't get pub/sub", err)
	}

	// Get a publish/subscribe client for all devices
	allDevicesPubSub := pubsub.AllDevices()
	defer allDevicesPubSub.Close()

	msgs, err := allDevicesPubSub.SubscribeUplink()
	if err != nil {
		log.Fatal("can't subscribe to events", err)
	}

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Println("unsubscribe from all devices")
				if err = allDevicesPubSub.UnsubscribeUplink(); err != nil {
					log.Println("can't unsubscribe from uplink msg", err)
				}
				return
			case msg := <-msgs:
				if msg == nil || msg.PayloadRaw == nil {
					continue
				}
				log.Println("received msg", "device", msg.DevID, "data", hex.EncodeToString(msg.PayloadRaw))

				obs, err := payload.Decode(msg.PayloadRaw)
				if err != nil {
					log.Println("can't decode payload", err)
					continue
				}
				for _, o := range obs {
					log.Println("  ap", o.ID, "rssi", o.RSSI)
				}
			}
		}
	}()

	<-interrupt
}
