package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/bindings/go/modelarchive"
	"ocm.software/open-component-model/bindings/go/modelarchive/config/v1alpha1"
	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/flags/log"
	"ocm.software/open-component-model/bindings/go/modelarchive/metrics"
)

// preRunE configures logging, loads the configuration and opens the model store
// for the executed command.
func preRunE(cmd *cobra.Command, _ []string) error {
	logger, err := log.GetBaseLogger(cmd)
	if err != nil {
		return fmt.Errorf("could not retrieve logger: %w", err)
	}
	slog.SetDefault(logger)
	cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
	mactx.Register(cmd)

	cfg, err := configurationForCommand(cmd)
	if err != nil {
		return err
	}
	cmd.SetContext(mactx.WithConfiguration(cmd.Context(), cfg))

	if _, ok := cmd.Annotations[mactx.AnnotationNoStore]; ok {
		return nil
	}
	if cfg.StoreRoot == "" {
		return fmt.Errorf("no model store configured, use --%s or set storeRoot in the configuration", StoreFlag)
	}

	registry := prometheus.NewRegistry()
	if err := metrics.RegisterMetrics(registry); err != nil {
		return fmt.Errorf("could not register metrics: %w", err)
	}
	opts := append(modelarchive.OptionsFromConfig(cfg), modelarchive.WithMetrics(metrics.Default))
	store, err := modelarchive.Open(cfg.StoreRoot, opts...)
	if err != nil {
		return fmt.Errorf("could not open model store: %w", err)
	}
	slogcontext.FromCtx(cmd.Context()).DebugContext(cmd.Context(), "opened model store", slog.String("root", store.Root()))

	ctx := mactx.WithStore(cmd.Context(), store)
	cmd.SetContext(mactx.WithGatherer(ctx, registry))
	return nil
}

// postRunE writes the metrics text file if requested.
func postRunE(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString(MetricsTextfileFlag)
	if err != nil || path == "" {
		return err
	}
	gatherer := mactx.FromContext(cmd.Context()).Gatherer()
	if gatherer == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("could not write metrics: %w", err)
	}
	return nil
}

// configurationForCommand merges the configuration file with the flags of cmd.
// Flags that were set explicitly take precedence.
func configurationForCommand(cmd *cobra.Command) (*v1alpha1.Config, error) {
	var fromFile *v1alpha1.Config
	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(ConfigEnvironmentKey)
	}
	if path != "" {
		if fromFile, err = v1alpha1.Load(path); err != nil {
			return nil, fmt.Errorf("could not load configuration %s: %w", path, err)
		}
	}

	fromFlags, err := configurationFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg := v1alpha1.Merge(fromFile, fromFlags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configurationFromFlags(cmd *cobra.Command) (*v1alpha1.Config, error) {
	flags := cmd.Flags()
	cfg := &v1alpha1.Config{Type: v1alpha1.VersionedType}
	var errs []error
	if flags.Changed(StoreFlag) {
		v, err := flags.GetString(StoreFlag)
		cfg.StoreRoot, errs = v, append(errs, err)
	}
	if flags.Changed(AllowedRootFlag) {
		v, err := flags.GetStringArray(AllowedRootFlag)
		cfg.AllowedRoots, errs = v, append(errs, err)
	}
	if flags.Changed(WorkingDirectoryFlag) {
		v, err := flags.GetString(WorkingDirectoryFlag)
		cfg.WorkingDirectory, errs = v, append(errs, err)
	}
	if flags.Changed(VersionedFlag) {
		v, err := flags.GetBool(VersionedFlag)
		cfg.VersionedDirectories, errs = &v, append(errs, err)
	}
	if flags.Changed(DownloadTimeoutFlag) {
		v, err := flags.GetDuration(DownloadTimeoutFlag)
		cfg.Download.Timeout, errs = v1alpha1.Duration(v), append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("could not read flags: %w", err)
	}
	return cfg, nil
}
