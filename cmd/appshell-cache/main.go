package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"

	appshellcache "github.com/appshell-cache/appshell-cache"
	"github.com/appshell-cache/appshell-cache/cache"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	configFilenameFlag string
	originFlag         string
	portFlag           int
	providerFlag       string
	versionFlag        string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Application shell origin to proxy to (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "sqlite", "Storage provider to use")
	flag.StringVar(&versionFlag, "version", "", "Deployment version tag (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	config, err := getConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read config")
	}

	if originFlag != "" {
		config.Origin = originFlag
	}
	if versionFlag != "" {
		config.Version = versionFlag
	}
	if config.Provider == "" {
		config.Provider = providerFlag
	}
	if config.Port <= 0 {
		config.Port = portFlag
	}

	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	if config.Version == "" {
		log.Fatal().Msg("Please specify version tag")
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid origin URL")
	}

	var stores cache.Stores
	switch config.Provider {
	case "sqlite":
		stores = cache.NewSQLiteStores(config.DBFile)
	case "memory":
		stores = cache.NewMemStores()
	default:
		log.Fatal().Msgf("Unsupported storage provider: %s", config.Provider)
	}

	engine, err := appshellcache.New(appshellcache.Config{
		Stores:           stores,
		OriginURL:        *originURL,
		OriginHost:       config.OriginHost,
		Version:          config.Version,
		Namespace:        config.Namespace,
		Precache:         config.Precache,
		NoCacheHosts:     config.NoCacheHosts,
		MaxAssetEntries:  config.MaxAssetEntries,
		AssetStrategy:    appshellcache.AssetStrategy(config.AssetStrategy),
		ShellFallbackKey: config.ShellFallback,
		Logger:           &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create engine")
	}

	// the host sequences install before activate
	ctx := context.Background()
	if err := engine.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Installation failed")
	}
	if err := engine.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Activation failed")
	}

	r := chi.NewRouter()
	r.Post("/-/message", messageHandler(engine))
	r.Get("/-/events", eventsHandler(engine))
	r.Mount("/", engine)

	addr := fmt.Sprintf(":%d", config.Port)
	log.Info().Str("addr", addr).Str("origin", config.Origin).Msg("Listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// messageHandler accepts control commands from application instances.
func messageHandler(engine *appshellcache.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg appshellcache.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid message", http.StatusBadRequest)
			return
		}
		engine.HandleMessage(r.Context(), msg)
		w.WriteHeader(http.StatusAccepted)
	}
}

// eventsHandler streams broadcast signals to an application instance
// as server-sent events.
func eventsHandler(engine *appshellcache.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		msgs, cancel := engine.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, open := <-msgs:
				if !open {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
