package ttn

import "time"

// Uplink is the TTN v3 uplink message, as sent to webhooks and MQTT integrations
type Uplink struct {
	EndDeviceIDs struct {
		DeviceID string `json:"device_id"`
		DevEUI   string `json:"dev_eui"`
	} `json:"end_device_ids"`
	ReceivedAt    time.Time      `json:"received_at"`
	UplinkMessage *UplinkMessage `json:"uplink_message"`
}

type UplinkMessage struct {
	FPort int `json:"f_port"`
	// FRMPayload base64 encoded on the wire
	FRMPayload []byte `json:"frm_payload"`
}

// Payload returns the application payload, nil if absent
func (u *Uplink) Payload() []byte {
	if u.UplinkMessage == nil {
		return nil
	}
	return u.UplinkMessage.FRMPayload
}
