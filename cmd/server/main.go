package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/twentylab/handelsregister/lib/configutil"
	"github.com/twentylab/handelsregister/lib/restyutil"
	"github.com/twentylab/handelsregister/lib/scrapers/handelsregister"
	"github.com/twentylab/handelsregister/lib/searchcache"
	"github.com/twentylab/handelsregister/lib/serviceutil"
	"github.com/twentylab/handelsregister/lib/telemetry"
	"github.com/twentylab/handelsregister/services/api"
	"github.com/twentylab/handelsregister/services/registry"
)

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to read config", err)
	}
	config = config.withEnvOverrides()
	if config.Port == 0 {
		config.Port = 8800
	}

	t, err := telemetry.SetupFromEnv(ctx, "handelsregister-api")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if err == nil {
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = searchcache.DefaultDir()
	}
	cache, err := searchcache.New(cacheDir)
	if err != nil {
		serviceutil.Fatal("failed to create cache directory", err)
	}
	slog.Info("caching result documents", "dir", cacheDir)

	debugDir := config.DebugDir
	if debugDir == "" {
		debugDir = "debug_http"
	}

	openSession := func(debug bool) (registry.PortalSession, error) {
		opts := handelsregister.ClientOptions{BaseUrl: config.BaseUrl}
		if debug {
			opts.DebugOutput = restyutil.NewFilesystemOutput(debugDir)
		}
		return handelsregister.NewClient(opts)
	}
	searcher := registry.NewService(cache, openSession)

	opts, err := config.apiOptions()
	if err != nil {
		serviceutil.Fatal("failed to parse rate limit", err)
	}
	service := api.NewService(searcher, opts)

	go serviceutil.StartHttpServer(ctx, config.Port, service.Router())

	<-ctx.Done()
}
