package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/artsengine/internal/adapter/driven/backend"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/config"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

const previewWidth = 60

type generateOptions struct {
	csvPath    string
	kind       string
	ratio      string
	provider   string
	variations int
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate images, text or video for a prompt or a CSV sheet",
		Long: "Generate runs one batch against the configured backend and prints the results.\n" +
			"--kind, --ratio, --provider and --variations are saved as the new defaults,\n" +
			"the same way choosing them in the web GUI does.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store driven.KVStore) error {
				return runGenerate(cmd, cfg, store, opts, prompt)
			})
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV sheet with one prompt per row")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "Output type: image, text or video")
	cmd.Flags().StringVar(&opts.ratio, "ratio", "", "Aspect ratio, e.g. 16:9 or portrait")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider id, or env for the backend default")
	cmd.Flags().IntVar(&opts.variations, "variations", 0, "Variations per scene (1-4)")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, store driven.KVStore, opts *generateOptions, prompt string) error {
	c := cmd.Context()

	client, err := backend.New(cfg.APIBase)
	if err != nil {
		return err
	}

	vault := application.NewVault(store)
	prefs := application.NewPreferenceService(store, vault)
	if err := applyGenerateFlags(cmd, prefs, opts); err != nil {
		return err
	}

	bus := application.NewStatusBus()
	orch := application.NewOrchestrator(
		application.NewBackendProvider(client, nil),
		prefs,
		application.NewVideoPoller(cfg.VideoPollInterval, cfg.VideoPollAttempts),
		bus,
	)

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	updates, cancel := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for st := range updates {
			fmt.Fprintln(cmd.ErrOrStderr(), renderStatus(st, colorize))
		}
	}()

	if opts.csvPath != "" {
		f, err := os.Open(opts.csvPath)
		if err != nil {
			cancel()
			<-done
			return fmt.Errorf("open %s: %w", opts.csvPath, err)
		}
		_, err = orch.UploadScenes(filepath.Base(opts.csvPath), f)
		f.Close()
		if err != nil {
			cancel()
			<-done
			return err
		}
	}

	runErr := orch.Generate(c, prompt)
	cancel()
	<-done

	if results := orch.Results(); len(results) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Kind", "Ratio", "Result"},
			resultRows(results),
			[]columnAlignment{alignRight},
		))
	}
	return runErr
}

// applyGenerateFlags saves the flags the user actually set.
func applyGenerateFlags(cmd *cobra.Command, prefs *application.PreferenceService, opts *generateOptions) error {
	var patch application.PreferencesPatch
	changed := false
	if cmd.Flags().Changed("kind") {
		patch.OutputKind = &opts.kind
		changed = true
	}
	if cmd.Flags().Changed("ratio") {
		patch.AspectRatio = &opts.ratio
		changed = true
	}
	if cmd.Flags().Changed("provider") {
		patch.Provider = &opts.provider
		changed = true
	}
	if cmd.Flags().Changed("variations") {
		patch.Variations = &opts.variations
		changed = true
	}
	if !changed {
		return nil
	}
	_, err := prefs.Update(cmd.Context(), patch)
	return err
}

func resultRows(results []model.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		value := r.URL
		if r.Kind == model.OutputText {
			value = preview(r.Text)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), string(r.Kind), r.AspectRatio.APIString(), value})
	}
	return rows
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= previewWidth {
		return s
	}
	return string([]rune(s)[:previewWidth-1]) + "…"
}
