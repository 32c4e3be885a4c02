package list

import (
	"fmt"

	"github.com/spf13/cobra"

	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/flags/enum"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/render"
)

const FlagOutput = "output"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the model archives registered in the model store",
		Args:    cobra.NoArgs,
		RunE:    ListArchives,
	}
	enum.VarP(cmd.Flags(), FlagOutput, "o", []string{render.FormatTable, render.FormatJSON, render.FormatYAML}, "output format of the archive list")
	return cmd
}

func ListArchives(cmd *cobra.Command, _ []string) error {
	store := mactx.FromContext(cmd.Context()).Store()
	if store == nil {
		return fmt.Errorf("no model store available")
	}
	output, err := enum.Get(cmd.Flags(), FlagOutput)
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}
	return render.Archives(cmd.OutOrStdout(), output, store.List())
}
