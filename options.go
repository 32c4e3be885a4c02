package modelarchive

import (
	"log/slog"
	"time"

	"ocm.software/open-component-model/bindings/go/modelarchive/config/v1alpha1"
	"ocm.software/open-component-model/bindings/go/modelarchive/download"
	"ocm.software/open-component-model/bindings/go/modelarchive/metrics"
)

type options struct {
	allowedRoots     []string
	workingDirectory string
	client           download.Client
	versioned        bool
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithAllowedRoots permits local sources located below any of roots in addition to the store root.
func WithAllowedRoots(roots ...string) Option {
	return func(o *options) {
		o.allowedRoots = append(o.allowedRoots, roots...)
	}
}

// WithWorkingDirectory sets the directory relative local paths are resolved against.
// Defaults to the process working directory.
func WithWorkingDirectory(dir string) Option {
	return func(o *options) {
		o.workingDirectory = dir
	}
}

// WithDownloadClient sets the client used for remote references.
// Defaults to download.NewHTTPClient().
func WithDownloadClient(client download.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithVersionedDirectories extracts archives to <name>-<modelVersion> instead of <name>.
func WithVersionedDirectories(versioned bool) Option {
	return func(o *options) {
		o.versioned = versioned
	}
}

// WithMetrics records acquisitions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger of the store. Without it, the logger is taken from the
// context of each call, see slogcontext.FromCtx.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// OptionsFromConfig translates a configuration into store options.
// The store root itself is not an option and has to be passed to Open.
func OptionsFromConfig(cfg *v1alpha1.Config) []Option {
	if cfg == nil {
		return nil
	}
	opts := []Option{
		WithAllowedRoots(cfg.AllowedRoots...),
		WithVersionedDirectories(cfg.Versioned()),
	}
	if cfg.WorkingDirectory != "" {
		opts = append(opts, WithWorkingDirectory(cfg.WorkingDirectory))
	}
	var clientOpts []download.Option
	if cfg.Download.Timeout > 0 {
		clientOpts = append(clientOpts, download.WithTimeout(time.Duration(cfg.Download.Timeout)))
	}
	if cfg.Download.UserAgent != "" {
		clientOpts = append(clientOpts, download.WithUserAgent(cfg.Download.UserAgent))
	}
	if len(clientOpts) > 0 {
		opts = append(opts, WithDownloadClient(download.NewHTTPClient(clientOpts...)))
	}
	return opts
}
