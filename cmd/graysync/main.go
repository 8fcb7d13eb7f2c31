// Gray Logic Sync - home automation state replication.
//
// graysync keeps a state cache over the local resources (host health,
// state files, persistent variables), publishes it over HTTP and
// advertisements, records changes, and follows the resources of remote
// graysync hosts through proxy resources.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sync/internal/advert"
	"github.com/nerrad567/gray-logic-sync/internal/driver/file"
	"github.com/nerrad567/gray-logic-sync/internal/driver/system"
	"github.com/nerrad567/gray-logic-sync/internal/fault"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sync/internal/publish"
	"github.com/nerrad567/gray-logic-sync/internal/recorder"
	"github.com/nerrad567/gray-logic-sync/internal/resource"
	"github.com/nerrad567/gray-logic-sync/internal/state"
	"github.com/nerrad567/gray-logic-sync/internal/store"
	"github.com/nerrad567/gray-logic-sync/internal/subscribe"
	_ "github.com/nerrad567/gray-logic-sync/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Sync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "service", cfg.Service.Name)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Persistence
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if version, err := db.SchemaVersion(ctx); err == nil {
		log.Info("database ready", "path", db.Path(), "schema", version)
	}
	st := store.New(db.DB)

	// Optional brokers
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Local resources
	local, err := buildLocal(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	local.cache.SetLogger(log.Component("cache"))
	local.cache.SetMetrics(m)

	pub, err := publish.New(publish.Deps{
		Config:      cfg.Service,
		WS:          cfg.WebSocket,
		Cache:       local.cache,
		Logger:      log,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		History:     st,
		Transports:  buildTransports(cfg, mqttClient, log),
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	notify := faultNotifier(log, pub, m)
	local.cache.SetFaultNotifier(notify)

	recDeps := recorder.Deps{
		Cache:     local.cache,
		Service:   cfg.Service.Name,
		Persist:   local.persist,
		Retention: time.Duration(cfg.Database.HistoryRetention) * 24 * time.Hour,
		Store:     st,
		Logger:    log.Component("recorder"),
		Fault:     notify,
	}
	if influxClient != nil {
		recDeps.Influx = influxClient
	}
	if mqttClient != nil {
		recDeps.MQTT = mqttClient
	}
	rec := recorder.New(recDeps)

	remote := buildRemotes(cfg, log, m)
	remote.cache.SetFaultNotifier(notify)

	g, gctx := errgroup.WithContext(ctx)

	if err := pub.Start(gctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("starting publisher: %w", err)
	}
	defer func() {
		if closeErr := pub.Close(); closeErr != nil {
			log.Error("error closing publisher", "error", closeErr)
		}
		local.cache.Stop()
	}()

	g.Go(func() error { return rec.Run(gctx) })
	if local.files != nil {
		g.Go(func() error { return local.files.Run(gctx) })
	}

	if len(remote.services) > 0 {
		if err := remote.cache.Start(gctx); err != nil {
			return fmt.Errorf("starting remote cache: %w", err)
		}
		defer remote.cache.Stop()

		for _, svc := range remote.services {
			if svc.Client().Addr() == "" {
				continue
			}
			g.Go(func() error {
				if err := svc.Enable(gctx); err != nil {
					log.Warn("remote service not reachable yet", "service", svc.Name(), "error", err)
				}
				return nil
			})
		}
		startDiscovery(gctx, g, cfg, remote.watcher, mqttClient, log)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"port", pub.Port(),
		"resources", local.cache.Resources().Len(),
		"remotes", len(remote.services),
	)
	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("Gray Logic Sync stopped")
	return nil
}

// localSet is the local collection with its cache and helpers.
type localSet struct {
	cache   *state.Cache
	persist []string
	files   *file.Watcher
}

// buildLocal creates the local collection: system resources, state files
// and variables. Persistent variables are restored from the store.
func buildLocal(ctx context.Context, cfg *config.Config, st *store.Store, log *logging.Logger) (*localSet, error) {
	coll := resource.NewCollection(cfg.Service.Name)
	cache := state.NewCache(coll, state.CacheConfig{
		Name:     cfg.Service.Name,
		Interval: cfg.Cache.Interval,
	})
	set := &localSet{cache: cache}

	if cfg.System.Enabled {
		for _, r := range system.Resources(system.Config{
			Prefix:   shortHostname(),
			DiskPath: cfg.System.DiskPath,
			Poll:     cfg.System.Poll,
		}) {
			coll.Add(r)
		}
	}

	if len(cfg.Files) > 0 {
		w, err := file.NewWatcher(cache.Notify)
		if err != nil {
			return nil, err
		}
		w.SetLogger(log.Component("file"))
		for _, fc := range cfg.Files {
			if err := w.Add(fc.Path); err != nil {
				log.Warn("state file will not raise events", "resource", fc.Name, "error", err)
			}
			coll.Add(file.New(resource.Meta{
				Name:  fc.Name,
				Type:  fc.Type,
				Label: fc.Label,
				Group: fc.Group,
			}, fc.Path))
		}
		set.files = w
	}

	saved, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading saved values: %w", err)
	}
	for _, vc := range cfg.Variables {
		v := resource.NewVariable(resource.Meta{
			Name:  vc.Name,
			Type:  vc.Type,
			Label: vc.Label,
			Group: vc.Group,
		}, vc.Initial)
		if vc.Persist {
			set.persist = append(set.persist, vc.Name)
			if value, ok := saved[vc.Name]; ok && value != nil {
				v.Restore(value)
			}
		}
		v.SetOnChange(cache.Notify)
		coll.Add(v)
	}

	log.Info("local resources created",
		"resources", coll.Len(),
		"files", len(cfg.Files),
		"variables", len(cfg.Variables),
		"persistent", len(set.persist),
	)
	return set, nil
}

// buildTransports returns the advertisement transports the config enables.
func buildTransports(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) []advert.Transport {
	if !cfg.Service.Advert.Enabled {
		return nil
	}
	a := cfg.Service.Advert

	var transports []advert.Transport
	mc, err := advert.NewMulticast(advert.MulticastConfig{
		Group:     a.Group,
		Port:      a.Port,
		TTL:       a.TTL,
		Interface: a.Interface,
		Loopback:  a.Loopback,
	})
	if err != nil {
		log.Warn("multicast advertisements disabled", "error", err)
	} else {
		mc.SetLogger(log.Component("advert"))
		transports = append(transports, mc)
	}

	if a.MQTT && mqttClient != nil {
		transports = append(transports, advert.NewMQTT(mqttClient, mqtt.Topics{}.Advert(cfg.Service.Name)))
	}
	return transports
}

// remoteSet is the separate collection of remote proxies and sentinels.
type remoteSet struct {
	cache    *state.Cache
	services []*subscribe.Service
	watcher  *subscribe.Watcher
}

// buildRemotes creates one client, sentinel and set of proxies per remote.
func buildRemotes(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) *remoteSet {
	coll := resource.NewCollection("remote")
	cache := state.NewCache(coll, state.CacheConfig{Name: "remote", Interval: cfg.Cache.Interval})
	cache.SetLogger(log.Component("remote-cache"))
	cache.SetMetrics(m)

	watcher := subscribe.NewWatcher()
	watcher.SetLogger(log.Component("discovery"))
	watcher.SetMetrics(m)

	set := &remoteSet{cache: cache, watcher: watcher}
	for _, rc := range cfg.Remotes {
		client := subscribe.NewClient(subscribe.ClientConfig{
			Name:         rc.Name,
			Addr:         rc.Addr,
			Cache:        rc.Cache,
			WriteThrough: rc.WriteThrough,
			Timeout:      rc.GetTimeout(),
		})
		client.SetLogger(log.Component("subscribe"))
		client.SetMetrics(m)
		client.SetNotify(cache.Notify)

		svc := subscribe.NewService(resource.Meta{
			Name:  rc.Name,
			Label: rc.Name,
			Group: []string{"Services"},
		}, client)
		coll.Add(svc)
		for _, res := range rc.Resources {
			coll.Add(subscribe.NewProxy(resource.Meta{
				Name:  res.Name,
				Type:  res.Type,
				Label: res.Label,
				Group: res.Group,
			}, client, res.Addr))
		}

		watcher.Register(client)
		set.services = append(set.services, svc)
	}
	return set
}

// startDiscovery follows remote advertisements on multicast and, when
// connected, on the broker. Failing to listen is not fatal: configured
// addresses still work.
func startDiscovery(ctx context.Context, g *errgroup.Group, cfg *config.Config, w *subscribe.Watcher, mqttClient *mqtt.Client, log *logging.Logger) {
	if !cfg.Discovery.Enabled {
		return
	}
	a := cfg.Service.Advert

	l, err := advert.Listen(advert.MulticastConfig{
		Group:     a.Group,
		Port:      a.Port,
		Interface: a.Interface,
	})
	if err != nil {
		log.Warn("multicast discovery disabled", "error", err)
	} else {
		l.SetLogger(log.Component("discovery"))
		g.Go(func() error { return w.Run(ctx, l) })
	}

	if mqttClient != nil {
		topic := mqtt.Topics{}.AllAdverts()
		if err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), w.MQTTHandler(ctx)); err != nil {
			log.Warn("MQTT discovery disabled", "topic", topic, "error", err)
		}
	}
}

// faultNotifier logs unexpected background errors, counts them and marks
// the advertised service record faulted.
func faultNotifier(log *logging.Logger, pub *publish.Server, m *metrics.Metrics) fault.Notifier {
	return func(module string, err error) {
		log.Error("fault", "module", module, "error", err)
		m.ObserveFault(module)
		pub.SetFault(true)
	}
}

// healthCheck verifies the infrastructure connections.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// shortHostname returns the host name up to the first dot.
func shortHostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "host"
	}
	host, _, _ = strings.Cut(host, ".")
	return host
}
