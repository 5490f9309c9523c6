// Package mqttpub publishes area and sensor state changes to an MQTT
// broker as Home-Assistant-style retained config/state topics, fed by
// the same internal/bus subscription idiom internal/wshub uses for its
// UI fan-out.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/model"
)

const publishTimeout = 5 * time.Second

// forwardedTags mirrors internal/wshub's list, restricted to the events
// that map onto Home-Assistant component topics.
var forwardedTags = []string{
	"arm_state_change",
	"area_state_change",
	"sensors_state_change",
	"sensors_error_change",
}

// haConfig is the retained Home-Assistant MQTT-discovery payload
// published once per entity at connect time.
type haConfig struct {
	Name        string `json:"name"`
	UniqueID    string `json:"unique_id"`
	StateTopic  string `json:"state_topic"`
	DeviceClass string `json:"device_class,omitempty"`
}

// Publisher subscribes to internal/bus and republishes area/sensor
// state as retained MQTT topics under arpi/alarm_control_panel/<area>
// and arpi/binary_sensor/<sensor>.
type Publisher struct {
	client mqtt.Client
	logger *log.Logger

	bus   *bus.Bus
	subID uuid.UUID

	msgs <-chan bus.Message
	done chan struct{}
	once sync.Once
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// New connects to the configured broker and returns a Publisher that is
// not yet draining the bus; call Run to start fan-out.
func New(b *bus.Bus, opts Options, logger *log.Logger) (*Publisher, error) {
	if b == nil || opts.Broker == "" {
		return nil, fmt.Errorf("mqttpub: bus and broker address are required")
	}

	copts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if logger != nil {
				logger.Printf("mqttpub: connected to %s", opts.Broker)
			}
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			if logger != nil {
				logger.Printf("mqttpub: connection lost: %v", err)
			}
		})
	if opts.Username != "" {
		copts.SetUsername(opts.Username)
		copts.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(copts)
	if token := client.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqttpub: connect to %s: %w", opts.Broker, token.Error())
	}

	msgs, subID := b.Subscribe(64, forwardedTags...)
	return &Publisher{
		client: client, logger: logger, bus: b,
		msgs: msgs, subID: subID, done: make(chan struct{}),
	}, nil
}

// Run drains bus events and republishes them until Stop is called.
func (p *Publisher) Run() {
	defer close(p.done)
	for msg := range p.msgs {
		p.publish(msg)
	}
}

// Stop unsubscribes from the bus, which ends Run, then disconnects the
// MQTT client.
func (p *Publisher) Stop() {
	p.once.Do(func() {
		p.bus.Unsubscribe(p.subID)
		p.client.Disconnect(250)
	})
}

// Done reports when Run has exited.
func (p *Publisher) Done() <-chan struct{} { return p.done }

func (p *Publisher) publish(msg bus.Message) {
	switch msg.Tag {
	case "arm_state_change", "area_state_change":
		area, ok := msg.Payload.(*model.Area)
		if !ok {
			return
		}
		p.publishAreaConfig(area)
		p.publishAreaState(area)
	case "sensors_state_change", "sensors_error_change":
		sensor, ok := msg.Payload.(*model.Sensor)
		if !ok {
			return
		}
		p.publishSensorConfig(sensor)
		p.publishSensorState(sensor)
	}
}

func areaConfigTopic(areaID int) string { return fmt.Sprintf("arpi/alarm_control_panel/%d/config", areaID) }
func areaStateTopic(areaID int) string  { return fmt.Sprintf("arpi/alarm_control_panel/%d/state", areaID) }

func sensorConfigTopic(sensorID int) string { return fmt.Sprintf("arpi/binary_sensor/%d/config", sensorID) }
func sensorStateTopic(sensorID int) string  { return fmt.Sprintf("arpi/binary_sensor/%d/state", sensorID) }

func (p *Publisher) publishAreaConfig(a *model.Area) {
	cfg := haConfig{
		Name:       a.Name,
		UniqueID:   fmt.Sprintf("arpi_area_%d", a.ID),
		StateTopic: areaStateTopic(a.ID),
	}
	p.publishJSON(areaConfigTopic(a.ID), cfg, true)
}

func (p *Publisher) publishAreaState(a *model.Area) {
	var state string
	switch a.State {
	case model.ArmAway:
		state = "armed_away"
	case model.ArmStay:
		state = "armed_home"
	default:
		state = "disarmed"
	}
	p.publishRaw(areaStateTopic(a.ID), state, true)
}

func (p *Publisher) publishSensorConfig(s *model.Sensor) {
	cfg := haConfig{
		Name:        fmt.Sprintf("sensor %d", s.ID),
		UniqueID:    fmt.Sprintf("arpi_sensor_%d", s.ID),
		StateTopic:  sensorStateTopic(s.ID),
		DeviceClass: "safety",
	}
	p.publishJSON(sensorConfigTopic(s.ID), cfg, true)
}

func (p *Publisher) publishSensorState(s *model.Sensor) {
	state := "OFF"
	if s.Alert || s.Error {
		state = "ON"
	}
	p.publishRaw(sensorStateTopic(s.ID), state, true)
}

func (p *Publisher) publishJSON(topic string, v any, retained bool) {
	b, err := json.Marshal(v)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("mqttpub: marshal %s: %v", topic, err)
		}
		return
	}
	p.publishRaw(topic, string(b), retained)
}

func (p *Publisher) publishRaw(topic, payload string, retained bool) {
	token := p.client.Publish(topic, 0, retained, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil && p.logger != nil {
		p.logger.Printf("mqttpub: publish %s: %v", topic, token.Error())
	}
}
