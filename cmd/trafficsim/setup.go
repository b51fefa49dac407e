package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/agent"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/config"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/mqtt"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/runner"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/storage/postgres"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

const remotePolicy = "remote"

// usesRemote reports whether any intersection is driven over MQTT.
func usesRemote(cfg *config.SimConfig) bool {
	return lo.ContainsBy(cfg.IntersectionIDs(), func(id string) bool {
		return cfg.PolicyFor(id) == remotePolicy
	})
}

// buildPolicies returns one policy per intersection. Without a gateway,
// remote intersections hold their signal.
func buildPolicies(cfg *config.SimConfig, gw *mqtt.Gateway) ([]agent.Policy, error) {
	timeout := time.Duration(cfg.MQTT.ActionTimeoutMS) * time.Millisecond
	var policies []agent.Policy
	for i, id := range cfg.IntersectionIDs() {
		name := cfg.PolicyFor(id)
		if name == remotePolicy {
			if gw == nil {
				policies = append(policies, agent.Hold{})
				continue
			}
			policies = append(policies, gw.Policy(id, timeout))
			continue
		}
		p, err := agent.New(name, cfg.Agents.Seed+uint64(i))
		if err != nil {
			return nil, fmt.Errorf("intersection %s: %w", id, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

type app struct {
	cfg     *config.SimConfig
	secrets config.Secrets
	bus     *events.Bus
	session *runner.Session
	store   *postgres.Client
	broker  *mqtt.Client
	gateway *mqtt.Gateway
	runID   string
}

// newApp loads configuration and builds the environment. Postgres and MQTT
// are connected only when asked for.
func newApp(ctx context.Context, configPath string, withPostgres bool) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}
	tc, err := cfg.ToTrafficConfig()
	if err != nil {
		return nil, err
	}
	env, err := traffic.New(tc)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		secrets: secrets,
		bus:     events.NewBus(256),
		session: runner.NewSession(env),
		runID:   uuid.NewString(),
	}
	a.bus.SetSession(a.runID)

	if withPostgres || cfg.Storage.Postgres {
		store, err := postgres.New(ctx, postgres.OptionsFromEnv(secrets.PostgresPassword), a.runID)
		if err != nil {
			return nil, err
		}
		a.store = store
		a.bus.SetSink(store)
	}
	return a, nil
}

// connectMQTT starts the agent gateway when any intersection is remote.
func (a *app) connectMQTT() error {
	if !usesRemote(a.cfg) {
		return nil
	}
	m := a.cfg.MQTT
	a.broker = mqtt.NewClient(mqtt.Options{
		Broker:   m.Broker,
		ClientID: m.ClientID,
		Username: m.Username,
		Password: a.secrets.MQTTPassword,
	})
	if err := a.broker.Connect(); err != nil {
		return err
	}
	a.gateway = mqtt.NewGateway(a.broker, mqtt.Topics{Prefix: m.TopicPrefix}, a.cfg.IntersectionIDs(), a.bus)
	if err := a.gateway.Start(); err != nil {
		return err
	}
	a.gateway.Monitor().Start(time.Duration(m.HeartbeatSec) * time.Second)
	return nil
}

func (a *app) newRunner() (*runner.Runner, error) {
	policies, err := buildPolicies(a.cfg, a.gateway)
	if err != nil {
		return nil, err
	}
	r, err := runner.New(a.session, policies, a.bus)
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		r.Store = a.store
	}
	return r, nil
}

func (a *app) close() {
	if a.gateway != nil {
		a.gateway.Monitor().Stop()
	}
	if a.broker != nil {
		a.broker.Disconnect()
	}
	if a.store != nil {
		a.store.Close()
	}
}
