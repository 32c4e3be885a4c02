package remove

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "remove {reference}...",
		Short: "Remove model archives from the model store",
		Long: `Remove unregisters model archives and deletes their extracted directories.

The reference is resolved the same way as for acquire, but does not need to exist anymore.
Archive files that were copied or downloaded into the store are deleted as well, archive
files that were already in the store are kept.`,
		Example: `  modelarchive --store /var/lib/models remove noop.mar`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    RemoveArchives,
	}
}

func RemoveArchives(cmd *cobra.Command, args []string) error {
	store := mactx.FromContext(cmd.Context()).Store()
	if store == nil {
		return fmt.Errorf("no model store available")
	}
	var errs []error
	for _, reference := range args {
		if err := store.Remove(cmd.Context(), reference); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", reference); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
