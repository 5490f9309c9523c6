package config

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/outputsign"
)

// Entities is the YAML-loadable form of the monitoring core's static
// topology: areas, zones, sensors, keypads and users, in the same
// device-list idiom desertwitch-sesmon uses for its YAML device list.
// Runtime-mutated fields (arm state, alert/error flags) start from
// their defaults here; internal/repo records later changes to them but
// does not read them back at startup.
type Entities struct {
	Areas   []AreaYAML   `yaml:"areas"`
	Zones   []ZoneYAML   `yaml:"zones"`
	Sensors []SensorYAML `yaml:"sensors"`
	Keypads []KeypadYAML `yaml:"keypads"`
	Users   []UserYAML   `yaml:"users"`
	Outputs []OutputYAML `yaml:"outputs"`
}

type AreaYAML struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type ZoneYAML struct {
	ID             int  `yaml:"id"`
	Name           string `yaml:"name"`
	DisarmedDelay  *int `yaml:"disarmed_delay,omitempty"`
	AwayAlertDelay *int `yaml:"away_alert_delay,omitempty"`
	StayAlertDelay *int `yaml:"stay_alert_delay,omitempty"`
	AwayArmDelay   *int `yaml:"away_arm_delay,omitempty"`
	StayArmDelay   *int `yaml:"stay_arm_delay,omitempty"`
}

type SensorYAML struct {
	ID               int     `yaml:"id"`
	Name             string  `yaml:"name"`
	Description      string  `yaml:"description,omitempty"`
	Channel          int     `yaml:"channel"`
	ChannelType      string  `yaml:"channel_type"`
	ContactType      string  `yaml:"contact_type"`
	EOLCount         string  `yaml:"eol_count"`
	ReferenceValue   *float64 `yaml:"reference_value,omitempty"`
	Enabled          bool    `yaml:"enabled"`
	SilentAlert      *bool   `yaml:"silent_alert,omitempty"`
	MonitorPeriod    *int    `yaml:"monitor_period,omitempty"`
	MonitorThreshold *int    `yaml:"monitor_threshold,omitempty"`
	ZoneID           int     `yaml:"zone_id"`
	AreaID           int     `yaml:"area_id"`
	TypeID           int     `yaml:"type_id"`
}

type KeypadYAML struct {
	ID      int    `yaml:"id"`
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`

	// DSC/MOCK reader settings.
	Port string `yaml:"port,omitempty"`
	Baud int    `yaml:"baud,omitempty"`
	Path string `yaml:"path,omitempty"` // MOCK reader's JSON fixture file

	// WIEGAND reader settings: GPIO pin names resolvable via
	// periph.io's gpioreg.ByName (e.g. "GPIO5").
	WiegandD0 string `yaml:"wiegand_d0,omitempty"`
	WiegandD1 string `yaml:"wiegand_d1,omitempty"`
}

type UserYAML struct {
	ID             int    `yaml:"id"`
	Name           string `yaml:"name"`
	AccessCodeHash string `yaml:"access_code_hash"`
	PINHash        *string `yaml:"pin_hash,omitempty"`
}

// OutputYAML is one configured output-sign binding: a board
// channel triggered by an area arming, the global system state, or a
// button press.
type OutputYAML struct {
	Channel         int    `yaml:"channel"`
	Enabled         bool   `yaml:"enabled"`
	TriggerKind     string `yaml:"trigger_kind"` // "area", "system", "button"
	AreaID          int    `yaml:"area_id,omitempty"`
	ButtonID        int    `yaml:"button_id,omitempty"`
	DelaySeconds    int    `yaml:"delay_seconds,omitempty"`
	DurationSeconds int    `yaml:"duration_seconds,omitempty"` // -1 means until stopped
	DefaultState    bool   `yaml:"default_state,omitempty"`
}

// LoadEntities reads and strictly decodes the entity topology at path.
func LoadEntities(fs afero.Fs, path string) (*Entities, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)

	var ents Entities
	if err := decoder.Decode(&ents); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &ents, nil
}

// ToAreas converts the YAML areas into model.Area, with DISARM as the
// startup arm state; the area_state rows internal/repo writes are not
// read back.
func (e *Entities) ToAreas() []*model.Area {
	out := make([]*model.Area, 0, len(e.Areas))
	for _, a := range e.Areas {
		out = append(out, &model.Area{ID: a.ID, Name: a.Name, State: model.ArmDisarm})
	}
	return out
}

// ToZones converts the YAML zones into model.Zone.
func (e *Entities) ToZones() []*model.Zone {
	out := make([]*model.Zone, 0, len(e.Zones))
	for _, z := range e.Zones {
		out = append(out, &model.Zone{
			ID: z.ID, Name: z.Name,
			DisarmedDelay: z.DisarmedDelay, AwayAlertDelay: z.AwayAlertDelay,
			StayAlertDelay: z.StayAlertDelay, AwayArmDelay: z.AwayArmDelay,
			StayArmDelay: z.StayArmDelay,
		})
	}
	return out
}

// ToSensors converts the YAML sensors into model.Sensor.
func (e *Entities) ToSensors() []*model.Sensor {
	out := make([]*model.Sensor, 0, len(e.Sensors))
	for _, s := range e.Sensors {
		out = append(out, &model.Sensor{
			ID: s.ID, Channel: s.Channel,
			ChannelType: model.ChannelType(s.ChannelType),
			ContactType: model.ContactType(s.ContactType),
			EOLCount:    model.EOLCount(s.EOLCount),
			ReferenceValue: s.ReferenceValue,
			Enabled:        s.Enabled,
			SilentAlert:    s.SilentAlert,
			MonitorPeriod:  s.MonitorPeriod,
			MonitorThreshold: s.MonitorThreshold,
			ZoneID: s.ZoneID, AreaID: s.AreaID, TypeID: s.TypeID,
			Name: s.Name, Description: s.Description,
		})
	}
	return out
}

// ToKeypads converts the YAML keypads into model.Keypad.
func (e *Entities) ToKeypads() []*model.Keypad {
	out := make([]*model.Keypad, 0, len(e.Keypads))
	for _, k := range e.Keypads {
		out = append(out, &model.Keypad{ID: k.ID, Enabled: k.Enabled, Type: model.KeypadType(k.Type)})
	}
	return out
}

// ToUsers converts the YAML users into model.User. Unlike the other
// entity types these are never handed directly to a controller
// constructor: internal/keypad reads users live from internal/repo, so
// callers must sync these into the database with UserRepo.UpsertUser
// at startup.
func (e *Entities) ToUsers() []*model.User {
	out := make([]*model.User, 0, len(e.Users))
	for _, u := range e.Users {
		out = append(out, &model.User{
			ID: u.ID, Name: u.Name,
			AccessCodeHash: u.AccessCodeHash, PINHash: u.PINHash,
		})
	}
	return out
}

// ToOutputs converts the YAML outputs into outputsign.Output bindings.
func (e *Entities) ToOutputs() []*outputsign.Output {
	out := make([]*outputsign.Output, 0, len(e.Outputs))
	for _, o := range e.Outputs {
		var kind outputsign.TriggerKind
		switch o.TriggerKind {
		case "system":
			kind = outputsign.TriggerSystem
		case "button":
			kind = outputsign.TriggerButton
		default:
			kind = outputsign.TriggerArea
		}
		duration := time.Duration(o.DurationSeconds) * time.Second
		if o.DurationSeconds < 0 {
			duration = outputsign.DurationUntilCancelled
		}
		out = append(out, &outputsign.Output{
			Key:          outputsign.Key{Kind: kind, AreaID: o.AreaID, ButtonID: o.ButtonID},
			Channel:      o.Channel,
			Enabled:      o.Enabled,
			Delay:        time.Duration(o.DelaySeconds) * time.Second,
			Duration:     duration,
			DefaultState: o.DefaultState,
		})
	}
	return out
}
