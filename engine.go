package appshellcache

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/appshell-cache/appshell-cache/cache"

	"github.com/rs/zerolog"
)

// AssetStrategy selects the caching policy used for asset requests.
type AssetStrategy string

const (
	// AssetCacheFirst serves assets from the store when present and only
	// goes to the network on a miss.
	AssetCacheFirst AssetStrategy = "cache-first"
	// AssetStaleWhileRevalidate serves a stored asset immediately and
	// refreshes it from the network in the background.
	AssetStaleWhileRevalidate AssetStrategy = "stale-while-revalidate"
)

const (
	// RoleShell is the store role holding the navigation fallback.
	RoleShell = "shell"
	// RoleAssets is the store role holding cached static assets.
	RoleAssets = "assets"
)

const (
	defaultNamespace       = "appshell"
	defaultMaxAssetEntries = 60
	defaultFallbackKey     = "/"
)

type Config struct {
	// Storage for cache stores. An in-memory store is used if nil.
	Stores cache.Stores
	// URL of the application shell origin.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Version tag baked in at deployment time. Replacing it is the only
	// mechanism that invalidates cached entries.
	Version string
	// Namespace prefixes every store name. Defaults to "appshell".
	Namespace string
	// Precache lists the resource paths fetched into the asset store
	// during Install.
	Precache []string
	// NoCacheHosts are host substrings whose responses must never be
	// served stale (live data proxies, identity providers).
	NoCacheHosts []string
	// MaxAssetEntries bounds the asset store. Defaults to 60.
	MaxAssetEntries int
	// AssetStrategy selects the policy for asset requests.
	// Defaults to AssetCacheFirst.
	AssetStrategy AssetStrategy
	// ShellFallbackKey is the fixed path navigations are cached under
	// and replayed from when offline. Defaults to "/".
	ShellFallbackKey string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Engine routes every intercepted request through one of four caching
// policies and owns the lifecycle of its versioned cache stores.
// Construct it with New; the configuration is immutable afterwards.
type Engine struct {
	stores        cache.Stores
	origin        url.URL
	originHost    string
	version       string
	namespace     string
	precache      []string
	noCacheHosts  []string
	maxAssets     int
	assetStrategy AssetStrategy
	fallbackKey   string
	httpClient    http.Client
	log           zerolog.Logger

	subMutex *sync.Mutex
	subs     map[int]chan Message
	nextSub  int
}

// New initializes the engine from the given configuration.
func New(config Config) (*Engine, error) {
	if config.OriginURL.Host == "" {
		return nil, errors.New("origin URL is required")
	}
	if config.Version == "" {
		return nil, errors.New("version tag is required")
	}

	// use global logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	e := &Engine{
		stores:        config.Stores,
		origin:        config.OriginURL,
		originHost:    config.OriginHost,
		version:       config.Version,
		namespace:     config.Namespace,
		precache:      config.Precache,
		noCacheHosts:  config.NoCacheHosts,
		maxAssets:     config.MaxAssetEntries,
		assetStrategy: config.AssetStrategy,
		fallbackKey:   config.ShellFallbackKey,
		httpClient: http.Client{
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		subMutex: &sync.Mutex{},
		subs:     make(map[int]chan Message),
	}

	if e.stores == nil {
		e.stores = cache.NewMemStores()
	}
	if e.namespace == "" {
		e.namespace = defaultNamespace
	}
	if e.maxAssets == 0 {
		e.maxAssets = defaultMaxAssetEntries
	}
	if e.assetStrategy == "" {
		e.assetStrategy = AssetCacheFirst
	}
	if e.fallbackKey == "" {
		e.fallbackKey = defaultFallbackKey
	}

	// use provided hostname for origin if configured
	if e.originHost != "" {
		e.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: e.originHost,
			},
		}
	}

	// create a child logger and add defaults
	e.log = logger.With().
		Str("version", e.version).
		Logger()

	return e, nil
}

// shellStore returns the name of the current shell store.
func (e *Engine) shellStore() string {
	return e.namespace + "-" + RoleShell + "-" + e.version
}

// assetStore returns the name of the current asset store.
func (e *Engine) assetStore() string {
	return e.namespace + "-" + RoleAssets + "-" + e.version
}

// ServeHTTP implements the http.Handler interface.
// It is the fetch interception point: non-GET requests pass straight
// through to the origin, everything else resolves through the policy
// selected by the classifier.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		e.passThrough(w, r)
		return
	}
	classification := e.Classify(r)
	switch classification {
	case NoCache:
		e.networkOnly(w, r)
	case Navigation:
		e.networkFirst(w, r)
	default:
		if e.assetStrategy == AssetStaleWhileRevalidate {
			e.staleWhileRevalidate(w, r)
		} else {
			e.cacheFirst(w, r)
		}
	}
}

// passThrough forwards a request to the origin without consulting any store.
func (e *Engine) passThrough(w http.ResponseWriter, r *http.Request) {
	res, err := e.fetch(r)
	if err != nil {
		e.log.Error().Err(err).Msg("Error connecting to origin")
		http.Error(w, "Could not connect to origin", http.StatusBadGateway)
		return
	}
	e.send(w, r, res, outcome{source: sourceNetwork})
}

// fetch forwards the request to the configured origin.
func (e *Engine) fetch(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	req.URL.Scheme = e.origin.Scheme
	req.URL.Host = e.origin.Host
	req.RequestURI = ""
	if e.originHost != "" {
		req.Host = e.originHost
	} else {
		req.Host = e.origin.Host
	}
	return e.httpClient.Do(req)
}

// send writes the response to the client, closing the response body.
func (e *Engine) send(w http.ResponseWriter, r *http.Request, res *http.Response, o outcome) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.Header().Set(engineHeader, o.String())
	w.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(w, res.Body)
	if err != nil {
		e.log.Error().Err(err).Msg("Could not write response body to client")
	}
	e.logRequest(r, o)
	e.log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

func (e *Engine) logRequest(r *http.Request, o outcome) {
	e.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("source", o.source).
		Bool("recovered", o.recovered).
		Msg("Sending response to client")
}

// requestKey returns the store key identifying a request.
func requestKey(r *http.Request) string {
	return r.Method + ":" + r.URL.RequestURI()
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
