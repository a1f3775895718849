package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/analyticsadmin/v1beta"
	"google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"

	"github.com/jonesrussell/site-portfolio/infrastructure/circuitbreaker"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	infraretry "github.com/jonesrussell/site-portfolio/infrastructure/retry"
)

var scopes = []string{
	analyticsdata.AnalyticsReadonlyScope,
	searchconsole.WebmastersReadonlyScope,
}

// Config configures the Google client.
type Config struct {
	// HTTPClient is the proxy-aware base client used for API and token calls.
	HTTPClient *http.Client
	// Credentials is the default service-account JSON; may be empty.
	Credentials       []byte
	RequestsPerSecond float64
	Burst             int
	Retry             infraretry.Config
	// Breaker is applied per API; only transient failures count.
	Breaker circuitbreaker.Config
}

type api int

const (
	apiData api = iota
	apiAdmin
	apiSearchConsole
)

func (a api) String() string {
	switch a {
	case apiData:
		return "analytics_data"
	case apiAdmin:
		return "analytics_admin"
	case apiSearchConsole:
		return "search_console"
	default:
		return "unknown"
	}
}

// Google implements TrafficProvider, SearchProvider and Discoverer over the
// Google REST APIs. Calls share one rate limiter, are retried on 429/5xx and
// transient network errors, and stop for a cooldown once an API keeps
// failing.
type Google struct {
	base        *http.Client
	defaultCred []byte
	limiter     *rate.Limiter
	retry       infraretry.Config
	breakers    map[api]*circuitbreaker.Breaker
	logger      infralogger.Logger

	// authorize and endpoints are replaced in tests.
	authorize func(creds []byte) (*http.Client, error)
	endpoints map[api]string

	mu      sync.Mutex
	clients map[string]*http.Client
}

var (
	_ TrafficProvider = (*Google)(nil)
	_ SearchProvider  = (*Google)(nil)
	_ Discoverer      = (*Google)(nil)
)

func NewGoogle(cfg Config, log infralogger.Logger) *Google {
	if log == nil {
		log = infralogger.NewNop()
	}
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retryCfg := cfg.Retry
	retryCfg.IsRetryable = isRetryable

	g := &Google{
		base:        base,
		defaultCred: cfg.Credentials,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		retry:       retryCfg,
		breakers:    make(map[api]*circuitbreaker.Breaker),
		logger:      log,
		endpoints:   map[api]string{},
		clients:     make(map[string]*http.Client),
	}
	g.authorize = g.jwtClient

	for _, a := range []api{apiData, apiAdmin, apiSearchConsole} {
		breakerCfg := cfg.Breaker
		breakerCfg.IsFailure = isRetryable
		breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Google API circuit changed state",
				infralogger.String("api", a.String()),
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		}
		g.breakers[a] = circuitbreaker.New(breakerCfg)
	}
	return g
}

// jwtClient builds an OAuth2 client whose token and API requests go through
// the base client's transport.
func (g *Google) jwtClient(creds []byte) (*http.Client, error) {
	conf, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, apperrors.Validation("invalid service account credentials: %v", err)
	}

	// The token source outlives any single request.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, g.base)
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx))
	client.Timeout = g.base.Timeout
	return client, nil
}

// clientFor returns a cached authorized client for creds, falling back to the
// default credentials.
func (g *Google) clientFor(creds string) (*http.Client, error) {
	raw := []byte(creds)
	if creds == "" {
		raw = g.defaultCred
	}
	if len(raw) == 0 {
		return nil, ErrNoCredentials
	}

	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	c, err := g.authorize(raw)
	if err != nil {
		return nil, err
	}
	g.clients[key] = c
	return c, nil
}

func (g *Google) options(a api, client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint, ok := g.endpoints[a]; ok {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

func (g *Google) dataService(ctx context.Context, creds string) (*analyticsdata.Service, error) {
	client, err := g.clientFor(creds)
	if err != nil {
		return nil, err
	}
	return analyticsdata.NewService(ctx, g.options(apiData, client)...)
}

func (g *Google) adminService(ctx context.Context, creds string) (*analyticsadmin.Service, error) {
	client, err := g.clientFor(creds)
	if err != nil {
		return nil, err
	}
	return analyticsadmin.NewService(ctx, g.options(apiAdmin, client)...)
}

func (g *Google) searchService(ctx context.Context, creds string) (*searchconsole.Service, error) {
	client, err := g.clientFor(creds)
	if err != nil {
		return nil, err
	}
	return searchconsole.NewService(ctx, g.options(apiSearchConsole, client)...)
}

// call rate limits and retries fn behind the breaker of a. Failures are
// reported as upstream errors named after op.
func (g *Google) call(ctx context.Context, a api, op string, fn func() error) error {
	attempt := 0
	err := g.breakers[a].Execute(ctx, func() error {
		return infraretry.Retry(ctx, g.retry, func() error {
			attempt++
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
			callErr := fn()
			if callErr != nil && attempt > 1 {
				g.logger.Debug("Google API retry failed",
					infralogger.String("operation", op),
					infralogger.Int("attempt", attempt),
					infralogger.Error(callErr),
				)
			}
			return callErr
		})
	})
	if err != nil {
		return apperrors.Upstream(op+" failed", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return apperrors.IsRetryableStatus(gerr.Code)
	}
	return infraretry.DefaultIsRetryable(err)
}
