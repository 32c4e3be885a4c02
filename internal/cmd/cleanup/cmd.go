package cleanup

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/bindings/go/modelarchive"
	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup {name}...",
		Short: "Delete extracted directories of registered model archives",
		Long: `Cleanup deletes the extracted directories of registered model archives to reclaim disk space.
The archives stay registered and a later acquire of the same reference extracts them again
without fetching. Directories that are used in place are never deleted.`,
		Example: `  modelarchive --store /var/lib/models cleanup noop`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    CleanupArchives,
	}
}

func CleanupArchives(cmd *cobra.Command, args []string) error {
	store := mactx.FromContext(cmd.Context()).Store()
	if store == nil {
		return fmt.Errorf("no model store available")
	}
	var errs []error
	for _, name := range args {
		archive, ok := store.Get(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", modelarchive.ErrNotFound, name))
			continue
		}
		if err := store.Cleanup(cmd.Context(), archive); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
