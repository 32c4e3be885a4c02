package inspect

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/bindings/go/modelarchive/archive"
	mactx "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/flags/enum"
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/render"
	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

const FlagOutput = "output"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect {archive}",
		Short: "Print the validated manifest of a model archive without extracting it",
		Long: `Inspect reads the manifest of a model archive file or directory, validates it and prints it.
Nothing is extracted and no model store is needed.`,
		Example: `  modelarchive inspect ./noop.mar -o json`,
		Args:    cobra.ExactArgs(1),
		Annotations: map[string]string{
			mactx.AnnotationNoStore: "true",
		},
		RunE: InspectArchive,
	}
	enum.VarP(cmd.Flags(), FlagOutput, "o", []string{render.FormatYAML, render.FormatJSON}, "output format of the manifest")
	return cmd
}

func InspectArchive(cmd *cobra.Command, args []string) (err error) {
	output, err := enum.Get(cmd.Flags(), FlagOutput)
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}

	fsys, closer, err := archive.OpenFS(args[0])
	if err != nil {
		return fmt.Errorf("could not open %s: %w", args[0], err)
	}
	defer func() {
		err = errors.Join(err, closer.Close())
	}()

	m, err := manifestv1.Load(fsys)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if _, err := m.SemVer(); err != nil {
		slogcontext.FromCtx(cmd.Context()).WarnContext(cmd.Context(), "model version is not a semantic version",
			slog.String("version", m.Version()), slog.String("error", err.Error()))
	}
	return render.Manifest(cmd.OutOrStdout(), output, m)
}
