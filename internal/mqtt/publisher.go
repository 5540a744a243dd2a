// Package mqtt publishes presence and usage status to an MQTT broker
// so the rest of the house can see whether the assistant is up and how
// busy it is. Ada appears as a native Home Assistant device via MQTT
// discovery. It uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads and an
// "online" birth message; a retained will message flips the
// availability topic to "offline" on unexpected disconnects.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/adavila/ada/internal/buildinfo"
	"github.com/adavila/ada/internal/config"
)

// DefaultTopicPrefix roots all topics when the config leaves it empty.
const DefaultTopicPrefix = "ada"

// DefaultDiscoveryPrefix is Home Assistant's standard discovery root.
const DefaultDiscoveryPrefix = "homeassistant"

// DefaultDeviceName appears in the Home Assistant UI.
const DefaultDeviceName = "ada"

// publishInterval paces the periodic state updates.
const publishInterval = 60 * time.Second

// Publisher manages the MQTT connection and runs a periodic loop that
// pushes availability and counters to the broker.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	model      string
	device     DeviceInfo
	stats      *Stats
	logger     *slog.Logger
	cm         *autopaho.ConnectionManager
}

// NewPublisher creates a Publisher but does not connect. Call
// [Publisher.Start] to begin the connection and publish loop.
func NewPublisher(cfg config.MQTTConfig, instanceID, model string, stats *Stats, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultDeviceName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		model:      model,
		device:     newDeviceInfo(instanceID, cfg.DeviceName),
		stats:      stats,
		logger:     logger,
	}
}

// Start connects to the broker and blocks publishing state until ctx
// is cancelled. On every (re-)connect it publishes a retained "online"
// birth message.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "ada-" + p.instanceID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" || brokerURL.Scheme == "tls" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	// autopaho keeps retrying in the background if the first attempt
	// is slow, so a timeout here is not fatal.
	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop publishes a retained "offline" availability message before
// closing the connection.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) availabilityTopic() string {
	return p.cfg.TopicPrefix + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.cfg.TopicPrefix + "/" + entity
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

func (p *Publisher) runLoop(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	p.publishStates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx)
		}
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	if p.cm == nil {
		return
	}

	turns, inTok, outTok, lastTurn := p.stats.Snapshot()

	states := map[string]string{
		"uptime":  p.stats.Uptime().Truncate(time.Second).String(),
		"version": buildinfo.Version,
		"model":   p.model,
		"turns":   strconv.FormatInt(turns, 10),
		"tokens":  strconv.FormatInt(inTok+outTok, 10),
	}
	if !lastTurn.IsZero() {
		states["last_turn"] = lastTurn.Format(time.RFC3339)
	} else {
		states["last_turn"] = "never"
	}

	for entity, value := range states {
		if _, err := p.cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed",
				"entity", entity, "error", err)
		}
	}

	p.logger.Debug("mqtt states published", "entities", len(states))
}
