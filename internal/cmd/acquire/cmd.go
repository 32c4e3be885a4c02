package acquire

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/bindings/go/modelarchive"
	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/flags/enum"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/render"
)

const FlagOutput = "output"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire {reference}...",
		Short: "Acquire model archives into the model store",
		Long: `Acquire makes model archives available in the model store.

A reference is one of
- the name of a file or directory in the store root, e.g. noop.mar
- a local path inside the store root or an allowed root, e.g. /models/mnist.tar.gz
- a file:// URI to such a path, e.g. file:///models/mnist.tar.gz
- an http:// or https:// URL, e.g. https://example.com/squeezenet_v1.1.mar

Each archive is extracted to <store>/<name>, where name is the archive file name without
its extension, and validated against its manifest before it is registered.
Multiple references are acquired concurrently.`,
		Example: `  modelarchive --store /var/lib/models acquire noop.mar
  modelarchive --store /var/lib/models acquire https://example.com/models/squeezenet_v1.1.mar -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: AcquireArchives,
	}
	enum.VarP(cmd.Flags(), FlagOutput, "o", []string{render.FormatTable, render.FormatJSON, render.FormatYAML}, "output format of the acquired archives")
	return cmd
}

func AcquireArchives(cmd *cobra.Command, args []string) error {
	store := mactx.FromContext(cmd.Context()).Store()
	if store == nil {
		return fmt.Errorf("no model store available")
	}
	output, err := enum.Get(cmd.Flags(), FlagOutput)
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}

	var archives []*modelarchive.ModelArchive
	if len(args) == 1 {
		archive, err := store.Acquire(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		archives = append(archives, archive)
	} else if archives, err = store.AcquireAll(cmd.Context(), args...); err != nil {
		return err
	}
	return render.Archives(cmd.OutOrStdout(), output, archives)
}
