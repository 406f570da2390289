package sceneguard

import (
	"fmt"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
)

// Client holds the loaded policy and builds guards from it.
// Safe for concurrent use; the guards it returns are not.
type Client struct {
	cfg       clientConfig
	policyCfg *policy.PolicyConfig
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	policyCfg, err := policy.LoadConfig(cfg.policyPath)
	if err != nil {
		return nil, fmt.Errorf("sceneguard: failed to load policy config: %w", err)
	}

	if cfg.profileName != "" {
		prof, err := profile.Load(cfg.profileName)
		if err != nil {
			return nil, fmt.Errorf("sceneguard: failed to load profile %q: %w", cfg.profileName, err)
		}
		policyCfg, err = profile.ApplyToPolicy(prof, policyCfg)
		if err != nil {
			return nil, fmt.Errorf("sceneguard: %w", err)
		}
	}

	return &Client{cfg: cfg, policyCfg: policyCfg}, nil
}

// NewGuard starts a guard session for one scene.
func (c *Client) NewGuard(s Scene) (*Guard, error) {
	g, err := guard.New(s.constraints(), c.options(s)...)
	if err != nil {
		return nil, fmt.Errorf("sceneguard: %w", err)
	}
	return &Guard{g: g}, nil
}

// Check runs finished text through a fresh guard and returns the result.
func (c *Client) Check(s Scene, text string) (Result, error) {
	r, err := guard.CheckComplete(text, s.constraints(), c.options(s)...)
	if err != nil {
		return Result{}, fmt.Errorf("sceneguard: %w", err)
	}
	return r, nil
}

// EndMarker returns the text appended whenever a guard stops a scene.
func (c *Client) EndMarker() string {
	return c.policyCfg.EndMarker
}

// LengthCap returns the length cap in characters for a target length.
func (c *Client) LengthCap(target int) int {
	return c.policyCfg.Thresholds.LengthCap(target)
}

func (c *Client) options(s Scene) []guard.Option {
	opts := []guard.Option{guard.WithConfig(c.policyCfg)}
	if len(s.Roster) > 0 {
		opts = append(opts, guard.WithRoster(s.Roster))
	}
	if c.cfg.strict != nil {
		opts = append(opts, guard.WithStrict(*c.cfg.strict))
	}
	if c.cfg.onViolation != nil {
		opts = append(opts, guard.WithOnViolation(c.cfg.onViolation))
	}
	return opts
}
