package newsdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/newsdex/internal/app"
	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/db"
)

// Client is the newsdex SDK entry point. It is safe for concurrent use.
type Client struct {
	app *app.App
	cfg config.Config
	obs *observer
}

// New creates a Client and waits for the database to become ready.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc, cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, cc.logger)
	if err != nil {
		return nil, fmt.Errorf("newsdex: %w", err)
	}
	return newClient(a, cfg, cc)
}

// newWithStore wires a Client over an existing store.
func newWithStore(store db.Store, opts ...Option) (*Client, error) {
	cc, cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	a, err := app.NewWithStore(cfg, store, cc.logger)
	if err != nil {
		return nil, fmt.Errorf("newsdex: %w", err)
	}
	return newClient(a, cfg, cc)
}

func newClient(a *app.App, cfg config.Config, cc *clientConfig) (*Client, error) {
	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return &Client{app: a, cfg: cfg, obs: obs}, nil
}

func buildConfig(opts []Option) (*clientConfig, config.Config, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	var cfg config.Config
	if cc.configFile != "" {
		loaded, err := config.LoadFile(cc.configFile)
		if err != nil {
			return nil, config.Config{}, fmt.Errorf("newsdex: %w", err)
		}
		cfg = loaded
	}
	for _, fn := range cc.overrides {
		fn(&cfg)
	}
	// The listener section is validated but unused by the SDK.
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if len(cfg.Database.Addrs) == 0 {
		return nil, config.Config{}, fmt.Errorf("newsdex: database address required (use WithRedis or WithConfigFile)")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, fmt.Errorf("newsdex: %w", err)
	}
	return cc, cfg, nil
}

// Close releases all connections.
func (c *Client) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureIndex creates the news index when it is missing and reports whether
// it did.
func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	start := time.Now()
	created, err := c.app.EnsureIndex(ctx)
	c.obs.observe("ensure_index", start, err)
	return created, err
}

// DropIndex removes the news index. Stored documents are kept.
func (c *Client) DropIndex(ctx context.Context) error {
	start := time.Now()
	err := c.app.DropIndex(ctx)
	c.obs.observe("drop_index", start, err)
	return err
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// Health checks the database, the index and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.app.Health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
