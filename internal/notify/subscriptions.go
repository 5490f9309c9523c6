package notify

import (
	"encoding/json"
	"fmt"
)

// kindKeys names a Kind the way the subscriptions option section keys
// it.
var kindKeys = map[Kind]string{
	AlertStarted:       "alert_started",
	AlertStopped:       "alert_stopped",
	PowerOutageStarted: "power_outage_started",
	PowerOutageStopped: "power_outage_stopped",
}

// channelDoc is one channel's entry in the subscriptions option's JSON
// value: whether the channel has a transport configured at all, and
// which notification kinds it wants to hear about.
type channelDoc struct {
	Configured bool     `json:"configured"`
	Kinds      []string `json:"kinds"`
}

// subscriptionsDoc is the decoded shape of the model.Option with
// Section "subscriptions", Name "channels".
type subscriptionsDoc struct {
	SMS1   channelDoc `json:"sms1"`
	SMS2   channelDoc `json:"sms2"`
	Email1 channelDoc `json:"email1"`
	Email2 channelDoc `json:"email2"`
}

// ConfigSubscriptions implements Subscriptions from a decoded
// subscriptions option value, the keyed-JSON-configuration idiom
// described for model.Option.
type ConfigSubscriptions struct {
	configured [channelCount]bool
	kinds      [channelCount]map[Kind]bool
}

// ParseSubscriptions decodes raw (the JSON value of the "subscriptions"
// option section's "channels" entry) into a ConfigSubscriptions.
func ParseSubscriptions(raw []byte) (*ConfigSubscriptions, error) {
	var doc subscriptionsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("notify: parse subscriptions: %w", err)
	}

	docs := [channelCount]channelDoc{SMS1: doc.SMS1, SMS2: doc.SMS2, Email1: doc.Email1, Email2: doc.Email2}

	s := &ConfigSubscriptions{}
	for ch, d := range docs {
		s.configured[ch] = d.Configured
		kinds := make(map[Kind]bool, len(d.Kinds))
		for _, name := range d.Kinds {
			kind, ok := kindByName(name)
			if !ok {
				return nil, fmt.Errorf("notify: parse subscriptions: unknown kind %q", name)
			}
			kinds[kind] = true
		}
		s.kinds[ch] = kinds
	}
	return s, nil
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindKeys {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Configured reports whether ch has a transport configured.
func (s *ConfigSubscriptions) Configured(ch Channel) bool {
	if ch < 0 || int(ch) >= len(s.configured) {
		return false
	}
	return s.configured[ch]
}

// Subscribed reports whether ch is configured and subscribed to kind.
func (s *ConfigSubscriptions) Subscribed(ch Channel, kind Kind) bool {
	if !s.Configured(ch) {
		return false
	}
	return s.kinds[ch][kind]
}
