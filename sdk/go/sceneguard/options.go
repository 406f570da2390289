package sceneguard

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	profileName string
	policyPath  string
	strict      *bool
	onViolation func(Violation)
}

// WithProfile sets the guard profile (e.g., "strict").
func WithProfile(name string) Option {
	return func(c *clientConfig) { c.profileName = name }
}

// WithPolicy sets the path to a policy YAML file.
func WithPolicy(path string) Option {
	return func(c *clientConfig) { c.policyPath = path }
}

// WithStrict overrides the mode of the policy and profile.
func WithStrict(strict bool) Option {
	return func(c *clientConfig) { c.strict = &strict }
}

// WithOnViolation registers a callback invoked for every recorded violation
// of every guard the client creates.
func WithOnViolation(fn func(Violation)) Option {
	return func(c *clientConfig) { c.onViolation = fn }
}
