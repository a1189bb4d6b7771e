package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
	"github.com/iota-uz/orgsync/modules/organization/services"
	"github.com/iota-uz/orgsync/pkg/composables"
	"github.com/iota-uz/orgsync/pkg/configuration"
)

type syncOptions struct {
	file        string
	url         string
	types       []string
	dryRun      bool
	yes         bool
	inferTypes  bool
	backend     string
	format      string
	metricsFile string
}

type syncReport struct {
	Mode                string `json:"mode" yaml:"mode"`
	services.SyncResult `yaml:",inline"`
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the organization tree with the registry export",
		Long: `Downloads (or reads) the organisaties.overheid.nl export, previews the changes as a dry run
and applies them after confirmation. Node errors do not stop the run; they are reported and the
command exits with code 7.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Read the export from a local XML file instead of downloading it")
	cmd.Flags().StringVar(&opts.url, "url", "", "Export URL (default: REGISTRY_URL)")
	cmd.Flags().StringArrayVar(&opts.types, "type", nil, "Only sync root organizations of this registry type (repeatable), e.g. Ministerie")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Preview only, never write")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Apply without asking for confirmation")
	cmd.Flags().BoolVar(&opts.inferTypes, "infer-types", false, "Infer directoraat-generaal/directie/afdeling from names of nested units")
	cmd.Flags().StringVar(&opts.backend, "backend", backendDB, "Backend: db or memory (offline preview against an empty tree)")
	cmd.Flags().StringVar(&opts.format, "format", formatText, "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file (default: METRICS_TEXTFILE)")
	return cmd
}

func (o *syncOptions) validate() error {
	if err := checkFormat(o.format); err != nil {
		return err
	}
	if o.format != formatText && !o.dryRun && !o.yes {
		return withCode(exitUsage, fmt.Errorf("--format %s needs --dry-run or --yes (no interactive confirmation)", o.format))
	}
	if o.file != "" && o.url != "" {
		return withCode(exitUsage, fmt.Errorf("--file and --url are mutually exclusive"))
	}
	return nil
}

func runSync(ctx context.Context, opts syncOptions, in io.Reader, out io.Writer) error {
	conf := useConfig()
	ctx = withLogger(ctx, conf)

	doc, err := loadDocument(ctx, conf, opts)
	if err != nil {
		return syncError(exitDB, err)
	}

	st, err := openStore(ctx, conf, opts.backend)
	if err != nil {
		return err
	}
	defer st.Close()

	syncOpts := services.SyncOptions{
		Document:    doc,
		FilterTypes: opts.types,
		DryRun:      true,
		InferTypes:  opts.inferTypes,
	}
	preview, err := runSyncService(ctx, st, syncOpts)
	if err != nil {
		return syncError(exitDB, err)
	}

	result := preview
	mode := "dry_run"
	if !opts.dryRun && preview.HasChanges() {
		if opts.format == formatText {
			if err := writeSyncReport(out, "Preview (dry run)", preview); err != nil {
				return err
			}
		}
		if !opts.yes {
			ok, err := confirm(in, out, "Apply these changes? [y/N] ")
			if err != nil {
				return withCode(exitUsage, err)
			}
			if !ok {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}
		syncOpts.DryRun = false
		result, err = runSyncService(ctx, st, syncOpts)
		if err != nil {
			return syncError(exitDBWrite, err)
		}
		mode = "apply"
	}

	writeMetrics(ctx, conf, opts.metricsFile)

	if opts.format == formatText {
		title := "Applied"
		if mode == "dry_run" {
			title = "Preview (dry run)"
		}
		if err := writeSyncReport(out, title, result); err != nil {
			return err
		}
		if !opts.dryRun && mode == "dry_run" {
			fmt.Fprintln(out, "Nothing to apply.")
		}
	} else if err := writeStructured(out, opts.format, syncReport{Mode: mode, SyncResult: result}); err != nil {
		return err
	}

	if result.HasErrors() {
		return withCode(exitNodeErrors, fmt.Errorf("%d registry node(s) could not be processed", len(result.Errors)))
	}
	return nil
}

// loadDocument reads --file, or downloads the export through the configured fetcher.
func loadDocument(ctx context.Context, conf *configuration.Configuration, opts syncOptions) ([]byte, error) {
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read --file: %w", err))
		}
		return data, nil
	}
	fetcher, release := newFetcher(conf, opts.url)
	defer release()
	return services.NewSyncService(nil, fetcher).LoadDocument(ctx, nil)
}

func runSyncService(ctx context.Context, st store, opts services.SyncOptions) (services.SyncResult, error) {
	var result services.SyncResult
	err := st.Run(ctx, func(ctx context.Context, repo orgunit.Repository) error {
		var err error
		result, err = services.NewSyncService(repo, nil).Sync(ctx, opts)
		return err
	})
	return result, err
}

// syncError classifies fatal sync errors; storage failures get fallback.
func syncError(fallback int, err error) error {
	var ce *cliError
	var fe *registry.FetchError
	var pe *registry.ParseError
	switch {
	case as(err, &ce):
		return err
	case as(err, &fe):
		return withCode(exitFetch, err)
	case as(err, &pe):
		return withCode(exitValidation, err)
	case is(err, services.ErrNoDocumentSource):
		return withCode(exitUsage, err)
	default:
		return withCode(fallback, err)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func writeSyncReport(w io.Writer, title string, res services.SyncResult) error {
	st := newStyles(w)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.title.Render(title))
	fmt.Fprintf(&b, "  created:   %d\n", res.Created)
	fmt.Fprintf(&b, "  updated:   %d\n", res.Updated)
	fmt.Fprintf(&b, "  unchanged: %d\n", res.Unchanged)
	if res.HasErrors() {
		fmt.Fprintf(&b, "  %s\n", st.bad.Render(fmt.Sprintf("errors:    %d", len(res.Errors))))
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "    %s\n", st.bad.Render(e))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// writeMetrics exports the process registry for the node_exporter textfile collector.
// A failed write is only logged; the sync itself already succeeded.
func writeMetrics(ctx context.Context, conf *configuration.Configuration, path string) {
	if path == "" {
		path = conf.MetricsTextfile
	}
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		if logger := composables.UseLogger(ctx); logger != nil {
			logger.WithError(err).WithField("path", path).Warn("failed to write metrics textfile")
		}
	}
}
