// Package cmd implements the modelarchive command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd/acquire"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd/cleanup"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd/inspect"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd/list"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd/remove"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/flags/log"
)

// Execute runs the modelarchive command and exits the process on failure.
func Execute() {
	if err := New().Execute(); err != nil {
		os.Exit(1)
	}
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelarchive [sub-command]",
		Short: "Acquire, extract and validate model archives in a local model store",
		Long: `modelarchive manages a local model store. Model archives are acquired from files
in the store, local paths, file:// URIs or http(s) URLs, extracted below the store root
and validated against their manifest before they are registered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE:  preRunE,
		PersistentPostRunE: postRunE,
		DisableAutoGenTag:  true,
		SilenceUsage:       true,
	}

	flags := cmd.PersistentFlags()
	flags.String(ConfigFlag, "", `configuration file of type modelarchive.config.ocm.software/v1alpha1.
If not set, the file named by the `+ConfigEnvironmentKey+` environment variable is used, if any.
Flags take precedence over values from the configuration file.`)
	flags.String(StoreFlag, "", `root directory of the model store`)
	flags.StringArray(AllowedRootFlag, nil, `additional directory local archives may be acquired from, can be repeated`)
	flags.String(WorkingDirectoryFlag, "", `directory relative local references are resolved against`)
	flags.Bool(VersionedFlag, false, `extract archives into <name>-<modelVersion> directories`)
	flags.Duration(DownloadTimeoutFlag, 0, `timeout for a single remote download, 0 means no timeout`)
	flags.String(MetricsTextfileFlag, "", `write acquisition metrics in the Prometheus text format to this file`)
	log.RegisterLoggingFlags(flags)

	cmd.AddCommand(acquire.New())
	cmd.AddCommand(remove.New())
	cmd.AddCommand(cleanup.New())
	cmd.AddCommand(list.New())
	cmd.AddCommand(inspect.New())
	return cmd
}
