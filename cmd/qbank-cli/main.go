package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"qbank/internal/assets"
	"qbank/internal/cli"
	"qbank/internal/kvcache"
	"qbank/internal/metrics"
	"qbank/internal/qbank"
	"qbank/internal/qbank/sqlite"
	"qbank/internal/remote"
	"qbank/internal/snapshot"
	"qbank/internal/syncengine"
	"qbank/internal/version"
)

// appVersion is stamped per release; any change clears the seed cache on
// first boot of the new build.
const appVersion = "1.3.3"

func main() {
	defaultData := os.Getenv("QBANK_DATA")
	if defaultData == "" {
		defaultData = "qbank-data"
	}
	defaultServer := os.Getenv("QBANK_SERVER")

	dataDir := flag.String("data", defaultData, "data directory for cache and snapshots")
	assetsDir := flag.String("assets", "assets", "directory holding the bundled seed assets")
	assetKey := flag.String("asset-key", "QBANK_SEED_KEY_2025", "obfuscation key for bundled assets")
	serverURL := flag.String("server", defaultServer, "backend base URL (empty disables sync)")
	userID := flag.String("user", os.Getenv("QBANK_USER"), "signed-in user id (empty means offline)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	if err := run(*dataDir, *assetsDir, *assetKey, *serverURL, *userID); err != nil {
		log.WithError(err).Fatal("qbank failed")
	}
}

func run(dataDir, assetsDir, assetKey, serverURL, userID string) error {
	ctx := context.Background()

	cache, err := kvcache.Open(filepath.Join(dataDir, "cache.json"))
	if err != nil {
		return err
	}

	seeds, err := snapshot.NewFileStore(filepath.Join(dataDir, "snapshots"))
	if err != nil {
		return err
	}

	var backend *remote.Client
	if serverURL != "" {
		backend = remote.NewClient(serverURL, &http.Client{Timeout: 10 * time.Second})
	}

	var gate version.Gate
	if backend != nil {
		gate = backend
	}
	manager := version.NewManager(appVersion, cache, seeds, gate)
	check, err := manager.Check(ctx)
	if err != nil {
		return err
	}
	if check.State == version.StateUpdateRequired {
		message := check.UpdateMessage
		if message == "" {
			message = "This version is no longer supported. Please install the latest release."
		}
		log.WithField("minimum", check.MinimumVersion).Error(message)
		os.Exit(1)
	}
	if check.Migrated {
		log.Info("app updated, question bank will reseed")
	}

	store := sqlite.NewStore(seeds, assets.Dir{Path: assetsDir, Key: assetKey})
	defer store.Close()

	// Fatal: without question content there is nothing to show.
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	session := func() (string, bool) { return userID, userID != "" }
	if backend == nil {
		session = func() (string, bool) { return "", false }
	}

	var engineBackend syncengine.Backend
	if backend != nil {
		engineBackend = backend
	} else {
		engineBackend = noBackend{}
	}
	engine := syncengine.NewEngine(cache, store, engineBackend, session)
	defer engine.Flush()

	if backend != nil && userID != "" {
		deviceID, err := remote.EnsureDeviceID(cache)
		if err != nil {
			log.WithError(err).Warn("could not establish a device id")
		} else {
			if err := backend.RegisterDevice(ctx, userID, deviceID); err != nil {
				log.WithError(err).Warn("device registration failed")
			}
			active := remote.Session{UserID: userID, DeviceID: deviceID}
			if err := cache.Set(kvcache.KeySession, active); err != nil {
				log.WithError(err).Warn("failed to record active session")
			}
		}
		if err := engine.SyncAttempts(ctx); err != nil {
			log.WithError(err).Warn("attempt sync failed, continuing offline")
		}
	}

	questions, err := store.AllQuestions(ctx)
	if err != nil {
		return err
	}
	if err := engine.RefreshCounts(questions); err != nil {
		log.WithError(err).Warn("failed to refresh cached counts")
	}

	app := &cli.App{Store: store, Engine: engine, Cache: cache}
	return app.Run(ctx, os.Stdin, os.Stdout)
}

// noBackend satisfies the backend interface when sync is disabled; it is
// never reached because the session reports signed-out.
type noBackend struct{}

func (noBackend) InsertAttempt(context.Context, string, qbank.Attempt) error { return nil }

func (noBackend) ListAttempts(context.Context, string) ([]qbank.Attempt, error) {
	return nil, qbank.ErrNoSession
}

func (noBackend) DeleteAttempts(context.Context, string) error { return nil }
