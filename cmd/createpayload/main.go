package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/akhenakh/wifittn/payload"
)

var (
	aps = flag.String("aps", "aa:bb:cc:dd:ee:ff=-40", "comma separated list of mac=rssi")
)

func main() {
	flag.Parse()

	var obs []payload.Observation
	for _, ap := range strings.Split(*aps, ",") {
		parts := strings.SplitN(strings.TrimSpace(ap), "=", 2)
		if len(parts) != 2 {
			log.Fatalf("invalid access point %q, expecting mac=rssi", ap)
		}
		rssi, err := strconv.Atoi(parts[1])
		if err != nil {
			log.Fatal(err)
		}
		obs = append(obs, payload.Observation{ID: parts[0], RSSI: rssi})
	}

	b, err := payload.Encode(obs)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Data", hex.EncodeToString(b))
	fmt.Println("Base64", base64.StdEncoding.EncodeToString(b))
}
