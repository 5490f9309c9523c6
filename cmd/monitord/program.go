package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/arpi-project/monitord/internal/alert"
	"github.com/arpi-project/monitord/internal/area"
	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/config"
	"github.com/arpi-project/monitord/internal/coordinator"
	"github.com/arpi-project/monitord/internal/hal"
	"github.com/arpi-project/monitord/internal/ipc"
	"github.com/arpi-project/monitord/internal/keypad"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/mqttpub"
	"github.com/arpi-project/monitord/internal/notify"
	"github.com/arpi-project/monitord/internal/outputsign"
	"github.com/arpi-project/monitord/internal/repo"
	"github.com/arpi-project/monitord/internal/secretfile"
	"github.com/arpi-project/monitord/internal/sensor"
	"github.com/arpi-project/monitord/internal/siren"
	"github.com/arpi-project/monitord/internal/statestore"
	"github.com/arpi-project/monitord/internal/statusfile"
	"github.com/arpi-project/monitord/internal/sysutil"
	"github.com/arpi-project/monitord/internal/wshub"
)

const (
	statusFilePath   = "/var/lib/monitord/status.json"
	healthPollPeriod = time.Second
	powerPollPeriod  = 2 * time.Second
	notifyInterval   = 5 * time.Second
)

// supervised is any long-running component whose exit the health
// monitor watches for: the Done channel that internal/sensor,
// internal/notify, internal/ipc, internal/wshub, internal/mqttpub,
// internal/keypad and internal/coordinator's Bridge all expose (wshub
// and mqttpub are started with Run rather than Start).
type supervised interface {
	Done() <-chan struct{}
}

// namedSupervised pairs a supervised component with the name the health
// monitor logs if it exits before the process is asked to stop.
type namedSupervised struct {
	name string
	comp supervised
}

// Program wires every monitoring-core component together and drives
// their combined lifecycle, grounded on cmd/sesmon's Program shape but
// managing a heterogeneous component set instead of a homogeneous map
// of device monitors.
type Program struct {
	logger *log.Logger

	store    *repo.Store
	statusFS *statusfile.Store

	sensorEngine *sensor.Engine
	areaCtl      *area.Controller
	alertCtl     *alert.Controller
	sirenDrv     *siren.Driver
	outputs      *outputsign.Engine
	bridge       *coordinator.Bridge
	coord        *coordinator.Coordinator
	keypads      []*keypad.Handler
	notifyQueue  *notify.Queue
	ipcServer    *ipc.Server
	wsHub        *wshub.Hub
	httpServer   *http.Server
	mqttPub      *mqttpub.Publisher

	voiceTransport *notify.VoiceTransport
	voiceNumber    string
	powerDetect    hal.PowerDetect

	b     *bus.Bus
	state *statestore.Store

	supervised []namedSupervised

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProgram loads every dependency and wires the full component graph
// from cfg/ents, but starts no goroutine until Start is called.
func NewProgram(fsys afero.Fs, cfg *config.Config, ents *config.Entities, out io.Writer) (*Program, error) {
	logger := log.New(out, "", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	store, err := repo.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("program: open database: %w", err)
	}

	if _, err := secretfile.Ensure(fsys, cfg.Secret.Path, statusfile.OSFlock{}); err != nil {
		store.Close()
		return nil, fmt.Errorf("program: ensure secret: %w", err)
	}

	for _, u := range ents.ToUsers() {
		if err := store.Users().UpsertUser(ctx, u); err != nil {
			store.Close()
			return nil, fmt.Errorf("program: sync user %d: %w", u.ID, err)
		}
	}

	b := bus.New(logger)
	state := statestore.New(b)

	statusFS := statusfile.New(fsys, statusFilePath, statusfile.OSFlock{})
	if snap, err := statusFS.Read(); err == nil {
		state.Restore(snap)
	}

	sensorsIn, outputsOut, powerDetect, err := openBoard(cfg.Board, fsys)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: open board: %w", err)
	}

	sensors := ents.ToSensors()
	zones := ents.ToZones()
	areas := ents.ToAreas()

	if err := sensor.Calibrate(ctx, sensorsIn, sensors, cfg.SampleRate.MeasurementCycles, cfg.SampleRate.MeasurementTime); err != nil {
		store.Close()
		return nil, fmt.Errorf("program: calibrate sensors: %w", err)
	}

	if err := sensor.Validate(sensors, sensorsIn.ChannelCount(), cfg.Wiring.V2DuplicateCheck); err != nil {
		store.Close()
		return nil, fmt.Errorf("program: validate sensors: %w", err)
	}

	sensorEngine, err := sensor.New(sensorsIn, store.Sensors(), b, logger, sensor.Config{
		SampleRateHz:      cfg.SampleRate.HZ,
		VRef:              cfg.Wiring.VRef,
		Wiring:            sensor.PullUpConfig{RPullUp: cfg.Wiring.RPullUp, RA: cfg.Wiring.RA, RB: cfg.Wiring.RB},
		BoardHasEOL:       cfg.Wiring.BoardHasEOL,
		MeasurementCycles: cfg.SampleRate.MeasurementCycles,
		MeasurementTime:   cfg.SampleRate.MeasurementTime,
		ChannelCount:      sensorsIn.ChannelCount(),
		V2DuplicateCheck:  cfg.Wiring.V2DuplicateCheck,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build sensor engine: %w", err)
	}
	if err := sensorEngine.LoadSensors(sensors); err != nil {
		store.Close()
		return nil, fmt.Errorf("program: load sensors: %w", err)
	}

	areaCtl, err := area.New(store.Areas(), b, logger, areas)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build area controller: %w", err)
	}

	sirenDrv, err := siren.New(outputsOut, cfg.Siren.Channel, b, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build siren: %w", err)
	}

	transports, err := buildTransports(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build transports: %w", err)
	}
	subs, err := loadSubscriptions(ctx, store.Options())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: load subscriptions: %w", err)
	}
	notifyQueue, err := notify.New(transports, subs, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build notify queue: %w", err)
	}

	alertCtl, err := alert.New(store.Alerts(), sirenDrv, notifyQueue, state, b, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build alert controller: %w", err)
	}

	outputsEngine, err := outputsign.New(outputsOut, ents.ToOutputs(), b, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build output engine: %w", err)
	}

	bridge, err := coordinator.New(sensors, zones, alertCtl, areaCtl, state, b, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build coordinator bridge: %w", err)
	}

	delays := coordinator.NewDelayResolver(sensors, zones, areaCtl)
	coord, err := coordinator.NewCoordinator(areaCtl, alertCtl, state, delays, b, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build coordinator: %w", err)
	}

	var keypads []*keypad.Handler
	for _, ky := range ents.Keypads {
		if !ky.Enabled {
			continue
		}
		kp := &model.Keypad{ID: ky.ID, Enabled: ky.Enabled, Type: model.KeypadType(ky.Type)}
		reader, err := openKeypadReader(kp.Type, ky, fsys, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("program: open keypad %d reader: %w", ky.ID, err)
		}
		handler, err := keypad.New(kp, reader, store.Users(), coord, delays, b, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("program: build keypad %d handler: %w", ky.ID, err)
		}
		keypads = append(keypads, handler)
	}

	ipcDeps := ipc.Deps{
		Bus:      b,
		Arm:      areaCtl,
		State:    stateReaderAdapter{store: state},
		Outputs:  outputEngineAdapter{engine: outputsEngine},
		Notifier: testNotifier{sms: transports.SMS, email: transports.Email},
		Siren:    sirenDrv,
		Clock:    systemClock{},
	}
	ipcServer, err := ipc.New(cfg.IPC.SocketPath, os.FileMode(cfg.IPC.Permission), ipcDeps, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("program: build ipc server: %w", err)
	}

	var voiceTransport *notify.VoiceTransport
	if cfg.GSM.Voice1 != "" && cfg.GSM.Port != "" {
		voiceTransport, err = notify.NewVoiceTransport(cfg.GSM.Port, cfg.GSM.Baud, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("program: build voice transport: %w", err)
		}
	}

	p := &Program{
		logger: logger, store: store, statusFS: statusFS,
		sensorEngine: sensorEngine, areaCtl: areaCtl, alertCtl: alertCtl,
		sirenDrv: sirenDrv, outputs: outputsEngine,
		bridge: bridge, coord: coord, keypads: keypads,
		notifyQueue: notifyQueue, ipcServer: ipcServer,
		voiceTransport: voiceTransport, voiceNumber: cfg.GSM.Voice1,
		powerDetect: powerDetect,
		b:           b, state: state,
		done: make(chan struct{}),
	}

	if cfg.WebSocket.Enabled {
		p.wsHub = wshub.New(b, logger)
		p.httpServer = &http.Server{Addr: cfg.WebSocket.Addr, Handler: p.wsHub}
	}

	if cfg.MQTT.Enabled {
		mqttPub, err := mqttpub.New(b, mqttpub.Options{
			Broker: cfg.MQTT.Broker, ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username, Password: cfg.MQTT.Password,
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("program: build mqtt publisher: %w", err)
		}
		p.mqttPub = mqttPub
	}

	p.supervised = []namedSupervised{
		{"sensor-engine", sensorEngine},
		{"notify-queue", notifyQueue},
		{"coordinator-bridge", bridge},
		{"ipc-server", ipcServer},
	}
	for i, kp := range keypads {
		p.supervised = append(p.supervised, namedSupervised{fmt.Sprintf("keypad-%d", i), kp})
	}
	if p.wsHub != nil {
		p.supervised = append(p.supervised, namedSupervised{"wshub", p.wsHub})
	}
	if p.mqttPub != nil {
		p.supervised = append(p.supervised, namedSupervised{"mqtt-publisher", p.mqttPub})
	}

	return p, nil
}

// Start launches every component's goroutine, bringing the monitoring
// state machine up to READY once the sensor engine is live, and begins
// the health-monitor tick that exits the process if a supervised
// component dies before Stop is called.
func (p *Program) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.sensorEngine.Start(ctx)
	p.bridge.Start(ctx)
	p.coord.Start(ctx)
	p.notifyQueue.Start(ctx, notifyInterval)
	for _, kp := range p.keypads {
		kp.Start(ctx)
	}

	powerNotifyBridge(ctx, p.b, p.notifyQueue, p.logger)
	voiceDialBridge(ctx, p.b, p.voiceTransport, p.voiceNumber, p.logger)
	go p.pollPower(ctx)
	go p.persistStatus(ctx)

	if p.wsHub != nil {
		go p.wsHub.Run(ctx)
		go func() {
			defer sysutil.RecoverGoPanic("http-server", p.logger)
			if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				p.logger.Printf("program: websocket http server: %v", err)
			}
		}()
	}
	if p.mqttPub != nil {
		go p.mqttPub.Run()
	}

	if err := p.ipcServer.Start(ctx); err != nil {
		p.logger.Printf("program: ipc server: %v", err)
	}

	p.state.SetMonitoring(statestore.Ready)

	go p.monitorHealth(ctx)

	go func() {
		<-ctx.Done()
		close(p.done)
	}()
}

// pollPower periodically reads the board's power-detect line and feeds
// the result into statestore, since no existing component owns that
// poll loop the way internal/sensor owns the sensor poll.
func (p *Program) pollPower(ctx context.Context) {
	defer sysutil.RecoverGoPanic("power-poll", p.logger)
	ticker := time.NewTicker(powerPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			present, err := p.powerDetect.ACPresent(ctx)
			if err != nil {
				p.logger.Printf("program: read power state: %v", err)
				continue
			}
			if present {
				p.state.SetPower(statestore.PowerOK)
			} else {
				p.state.SetPower(statestore.PowerOutage)
			}
		}
	}
}

// persistStatus mirrors statestore's snapshot to disk on every change so
// a restart resumes the last known monitoring/power state, subscribing
// to the same two tags statestore.Store publishes on change.
func (p *Program) persistStatus(ctx context.Context) {
	defer sysutil.RecoverGoPanic("status-persist", p.logger)
	msgs, subID := p.b.Subscribe(8, "system_state_change", "power_state_change")
	defer p.b.Unsubscribe(subID)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			if err := p.statusFS.Write(p.state.Snapshot()); err != nil {
				p.logger.Printf("program: persist status: %v", err)
			}
		}
	}
}

// monitorHealth exits the process if any supervised component's Done
// channel closes before Stop was requested, the way a supervisor
// process would treat an unexpected goroutine exit as fatal.
func (p *Program) monitorHealth(ctx context.Context) {
	defer sysutil.RecoverGoPanic("health-monitor", p.logger)
	ticker := time.NewTicker(healthPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range p.supervised {
				select {
				case <-s.comp.Done():
					p.logger.Printf("program: component %q exited unexpectedly, shutting down", s.name)
					p.Stop()
					os.Exit(1)
				default:
				}
			}
		}
	}
}

// Stop signals every component to stop and tears down open resources.
func (p *Program) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.sensorEngine.Stop()
	p.notifyQueue.Stop()
	p.bridge.Stop()
	for _, kp := range p.keypads {
		kp.Stop()
	}
	p.ipcServer.Stop()
	if p.wsHub != nil {
		p.wsHub.Stop()
		_ = p.httpServer.Close()
	}
	if p.mqttPub != nil {
		p.mqttPub.Stop()
	}
	if err := p.store.Close(); err != nil {
		p.logger.Printf("program: close database: %v", err)
	}
}

// Done returns a channel closed once Start's context has been canceled.
func (p *Program) Done() <-chan struct{} {
	return p.done
}
