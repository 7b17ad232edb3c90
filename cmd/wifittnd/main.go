package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gobuffalo/packr/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/joho/godotenv"
	grpc_middleware "github.com/mwitkow/go-grpc-middleware"
	grpc_opentracing "github.com/mwitkow/go-grpc-middleware/tracing/opentracing"
	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akhenakh/wifittn/ingest"
	"github.com/akhenakh/wifittn/storage"
	badgeridx "github.com/akhenakh/wifittn/storage/badger"
	"github.com/akhenakh/wifittn/storage/sqlite"
	"github.com/akhenakh/wifittn/storage/static"
	"github.com/akhenakh/wifittn/ttn"
	"github.com/akhenakh/wifittn/web"
)

const appName = "wifittnd"

var (
	version = "no version from LDFLAGS"

	logLevel = flag.String("logLevel", "info", "log level: debug, info, warn, error")

	resolverKind = flag.String("resolver", "static", "access point table: static (YAML file) or sqlite")
	apFile       = flag.String("apFile", "aps.yaml", "static access point table path")
	apDBPath     = flag.String("apDBPath", "wifi.db", "sqlite access point table DB path")
	apTable      = flag.String("apTable", sqlite.DefaultAPTable, "sqlite access point table name")

	storageKind   = flag.String("storage", "badger", "history storage: badger or sqlite")
	dbPath        = flag.String("dbPath", "history.db", "badger history DB path")
	historyDBPath = flag.String("historyDBPath", "wifi.db", "sqlite history DB path")

	zeroMagnitude = flag.Float64("zeroMagnitude", 100, "signal magnitude used for 0 RSSI readings")
	timezone      = flag.String("timezone", "Local", "time zone used to display positions")

	mqttBroker   = flag.String("mqttBroker", "", "TTN v3 MQTT broker, eg tcp://eu1.cloud.thethings.network:1883, disabled if empty")
	mqttUsername = flag.String("mqttUsername", "", "TTN v3 MQTT username appid@tenant")
	mqttPassword = flag.String("mqttPassword", "", "TTN v3 MQTT password (API key)")
	mqttTopic    = flag.String("mqttTopic", "", "TTN v3 MQTT uplink topic, defaults to v3/<username>/devices/+/up")

	ttnV2        = flag.Bool("ttnV2", false, "subscribe to TTN v2 uplinks")
	appID        = flag.String("appID", "", "The things network v2 application ID")
	appAccessKey = flag.String("appAccessKey", "", "The things network v2 access key")

	selfHostedMap = flag.Bool("selfHostedMap", false, "Use a self hosted map rather than MapBox")
	tilesKey      = flag.String("tilesKey", "", "The key that will passed in the queries to the tiles server")
	tilesURL      = flag.String("tilesURL", "", "the URL where to point to get tiles, OpenStreetMap if empty")

	httpMetricsPort = flag.Int("httpMetricsPort", 8888, "http port")
	httpAPIPort     = flag.Int("httpAPIPort", 8000, "http API port")
	healthPort      = flag.Int("healthPort", 6666, "grpc health port")

	httpServer        *http.Server
	grpcHealthServer  *grpc.Server
	httpMetricsServer *http.Server
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	flag.Parse()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.DefaultCaller, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = level.NewFilter(logger, levelOption(*logLevel))

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	level.Info(logger).Log("msg", "Starting app", "version", version)

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		level.Error(logger).Log("msg", "invalid time zone", "error", err, "timezone", *timezone)
		os.Exit(2)
	}

	var closers []io.Closer

	// access point table
	var resolver storage.AccessPointResolver
	switch *resolverKind {
	case "static":
		tbl, err := static.Load(*apFile)
		if err != nil {
			level.Error(logger).Log("msg", "failed to load access point table", "error", err, "path", *apFile)
			os.Exit(2)
		}
		level.Info(logger).Log("msg", "access point table loaded", "count", tbl.Len())
		resolver = tbl
	case "sqlite":
		apDB, err := sqlite.Open(*apDBPath, *apTable)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open access point DB", "error", err, "path", *apDBPath)
			os.Exit(2)
		}
		closers = append(closers, apDB)
		resolver = apDB
	default:
		level.Error(logger).Log("msg", "unknown resolver", "resolver", *resolverKind)
		os.Exit(2)
	}

	// history
	var store storage.HistoryStore
	switch *storageKind {
	case "badger":
		opts := badger.DefaultOptions(*dbPath)
		opts.Logger = nil
		opts.TableLoadingMode = options.FileIO

		bdb, err := badger.Open(opts)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open DB", "error", err, "path", *dbPath)
			os.Exit(2)
		}

		h, err := badgeridx.NewHistory(bdb)
		if err != nil {
			level.Error(logger).Log("msg", "failed to get history sequence", "error", err)
			os.Exit(2)
		}
		// release the sequence before closing the DB
		closers = append(closers, bdb, h)
		store = h
	case "sqlite":
		hdb, err := sqlite.OpenHistory(*historyDBPath)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open history DB", "error", err, "path", *historyDBPath)
			os.Exit(2)
		}
		closers = append(closers, hdb)
		store = hdb
	default:
		level.Error(logger).Log("msg", "unknown storage", "storage", *storageKind)
		os.Exit(2)
	}

	pipeline := ingest.NewPipeline(logger, resolver, store, ingest.Config{ZeroMagnitude: *zeroMagnitude})
	th := ttn.NewHandler(logger, pipeline)

	// gRPC Health Server
	healthServer := health.NewServer()
	g.Go(func() error {
		grpcHealthServer = grpc.NewServer(
			grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
				grpc_opentracing.StreamServerInterceptor(),
				grpc_prometheus.StreamServerInterceptor,
			)),
			grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
				grpc_opentracing.UnaryServerInterceptor(),
				grpc_prometheus.UnaryServerInterceptor,
			)),
		)

		healthpb.RegisterHealthServer(grpcHealthServer, healthServer)
		grpc_prometheus.Register(grpcHealthServer)

		haddr := fmt.Sprintf(":%d", *healthPort)
		hln, err := net.Listen("tcp", haddr)
		if err != nil {
			level.Error(logger).Log("msg", "gRPC Health server: failed to listen", "error", err)
			os.Exit(2)
		}
		level.Info(logger).Log("msg", fmt.Sprintf("gRPC health server serving at %s", haddr))
		return grpcHealthServer.Serve(hln)
	})

	// web server metrics
	g.Go(func() error {
		httpMetricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpMetricsPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP Metrics server serving at :%d", *httpMetricsPort))

		// Register Prometheus metrics handler.
		http.Handle("/metrics", promhttp.Handler())

		if err := httpMetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	// web server, webhook and history
	g.Go(func() error {
		cfg := web.Config{
			Location:      loc,
			TilesURL:      *tilesURL,
			TilesKey:      *tilesKey,
			SelfHostedMap: *selfHostedMap,
		}

		s := web.NewServer(appName, logger, store, cfg)

		// box html templates
		box := packr.New("Root box", "./templates")

		s.FileHandler = http.FileServer(box)
		s.Box = box

		r := mux.NewRouter()
		r.Handle("/ttn-webhook", th).Methods(http.MethodPost)
		r.HandleFunc("/api/history", s.HistoryQuery)
		r.HandleFunc("/api/history.geojson", s.GeoJSONQuery)
		r.HandleFunc("/api/rect/{urlat}/{urlng}/{bllat}/{bllng}", s.RectQuery)
		r.PathPrefix("/").Handler(
			handlers.CORS(
				handlers.AllowedOrigins([]string{"*"}))(s))

		httpServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpAPIPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      handlers.CompressHandler(r),
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP API server serving at :%d", *httpAPIPort))

		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	// TTN v3 MQTT subscription
	if *mqttBroker != "" {
		g.Go(func() error {
			sub := ttn.NewMQTTSubscriber(th, ttn.MQTTConfig{
				Broker:   *mqttBroker,
				ClientID: fmt.Sprintf("%s-%d", appName, os.Getpid()),
				Username: *mqttUsername,
				Password: *mqttPassword,
				Topic:    *mqttTopic,
				QoS:      1,
			})
			return sub.Run(ctx)
		})
	}

	// TTN v2 client subscriptions
	if *ttnV2 {
		g.Go(func() error {
			return th.RunSDK(ctx, ttn.SDKConfig{
				AppName:       appName,
				ClientVersion: version,
				AppID:         *appID,
				AppAccessKey:  *appAccessKey,
			})
		})
	}

	healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_SERVING)

	select {
	case <-interrupt:
		cancel()
		break
	case <-ctx.Done():
		break
	}

	level.Warn(logger).Log("msg", "received shutdown signal")

	healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpMetricsServer != nil {
		_ = httpMetricsServer.Shutdown(shutdownCtx)
	}

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if grpcHealthServer != nil {
		grpcHealthServer.GracefulStop()
	}

	err = g.Wait()

	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i].Close(); cerr != nil {
			level.Error(logger).Log("msg", "can't close storage", "error", cerr)
		}
	}

	if err != nil {
		level.Error(logger).Log("msg", "server returning an error", "error", err)
		os.Exit(2)
	}
}

func levelOption(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
