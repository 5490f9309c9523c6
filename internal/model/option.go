package model

import "encoding/json"

// Option is keyed configuration: (Name, Section) -> JSON value, hosting
// dyndns, SSH, MQTT, SMTP, GSM, subscriptions, syren, and sensitivity
// settings.
type Option struct {
	Name    string
	Section string
	Value   json.RawMessage
}

// Key returns the (section, name) composite key as a string, used by
// in-memory option caches.
func (o *Option) Key() string {
	return o.Section + "/" + o.Name
}
