package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

var (
	addr    = flag.String("addr", "http://localhost:8000/ttn-webhook", "webhook URL to send the uplink to")
	data    = flag.String("data", "aabbccddeeffd8", "hex encoded payload, see createpayload")
	devID   = flag.String("devID", "eui-70b3d57ed005a1b2", "device id")
	timeout = flag.Duration("timeout", 5*time.Second, "request timeout")
)

const raw = `{
	"end_device_ids": {"device_id": %q},
	"received_at": %q,
	"uplink_message": {"f_port": 1, "frm_payload": %q}
}`

func main() {
	flag.Parse()

	p, err := hex.DecodeString(*data)
	if err != nil {
		log.Fatal(err)
	}

	body := fmt.Sprintf(raw, *devID, time.Now().UTC().Format(time.RFC3339Nano), base64.StdEncoding.EncodeToString(p))

	c := &http.Client{Timeout: *timeout}
	resp, err := c.Post(*addr, "application/json", bytes.NewBufferString(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("sent", len(p), "bytes", resp.Status, string(bytes.TrimSpace(rb)))
}
