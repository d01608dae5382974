package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/coordinator"
	"github.com/theirongolddev/tburn/internal/daemon"
	"github.com/theirongolddev/tburn/internal/influx"
	"github.com/theirongolddev/tburn/internal/logger"
	"github.com/theirongolddev/tburn/internal/publisher"
	"github.com/theirongolddev/tburn/internal/store"
	"github.com/theirongolddev/tburn/internal/tibber"
)

// runtime is everything a command needs to compute snapshots.
type runtime struct {
	cfg    config.Config
	loc    *time.Location
	client *tibber.Client
	home   *tibber.Home
	coord  *coordinator.Coordinator
}

func tibberClient(cfg config.Config) (*tibber.Client, error) {
	var opts []tibber.Option
	if cfg.Tibber.APIURL != "" {
		opts = append(opts, tibber.WithAPIURL(cfg.Tibber.APIURL))
	}
	if cfg.Tibber.AppURL != "" {
		opts = append(opts, tibber.WithAppURL(cfg.Tibber.AppURL))
	}
	client := tibber.NewClient(cfg.Tibber.AccessToken, opts...)
	if client == nil {
		return nil, errors.New("no Tibber access token configured (run `tburn setup` or set TIBBER_ACCESS_TOKEN)")
	}
	return client, nil
}

// newRuntime validates cfg, resolves the home and registers the fetchers.
func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	client, err := tibberClient(cfg)
	if err != nil {
		return nil, err
	}

	home := client.Home(cfg.Tibber.HomeID)
	resolveCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout())
	defer cancel()
	if err := home.Resolve(resolveCtx); err != nil {
		return nil, fmt.Errorf("resolving home: %w", err)
	}
	info := home.Info()
	logger.Info("home resolved", "home_id", info.ID, "name", info.Name, "currency", info.Currency)

	coord := coordinator.New(coordinator.Options{
		Location:     loc,
		FetchTimeout: cfg.FetchTimeout(),
		Subsidy:      cfg.Subsidy.Params(),
		Start:        time.Now(),
	})
	coord.Register(coordinator.NewConsumptionFetcher(home, home, loc))
	if cfg.GridPricesEnabled() {
		coord.Register(coordinator.NewGridPriceFetcher(client, cfg.Tibber.Email, cfg.Tibber.Password, home.ID, loc))
	}

	return &runtime{cfg: cfg, loc: loc, client: client, home: home, coord: coord}, nil
}

// openSinks connects every enabled sink. A sink that cannot be reached is
// logged and left out so the daemon still serves its HTTP API.
func openSinks(ctx context.Context, cfg config.Config) []daemon.Sink {
	var sinks []daemon.Sink

	if cfg.Archive.Enabled {
		a, err := store.Open(cfg.ArchivePath())
		if err != nil {
			logger.Warn("archive disabled", "path", cfg.ArchivePath(), "error", err)
		} else {
			sinks = append(sinks, a)
		}
	}

	if cfg.MQTT.Enabled {
		p, err := publisher.New(cfg.MQTT)
		if err != nil {
			logger.Warn("mqtt sink disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			sinks = append(sinks, p)
		}
	}

	if cfg.InfluxDB.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		c, err := influx.NewClient(connectCtx, cfg.InfluxDB)
		cancel()
		if err != nil {
			logger.Warn("influxdb sink disabled", "url", cfg.InfluxDB.URL, "error", err)
		} else {
			sinks = append(sinks, c)
		}
	}

	for _, s := range sinks {
		logger.Info("sink enabled", "sink", s.Name())
	}
	return sinks
}
