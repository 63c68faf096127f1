package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/infrastructure/notify"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/pkg/composables"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

type importFileOptions struct {
	source      string
	userID      string
	isAdmin     bool
	description string
}

// dataSourceFile is the YAML form of a data source. Enumerations are written
// by name ("CreateAndAlter", "Trusted") or by number.
type dataSourceFile struct {
	Name              string                   `yaml:"name"`
	Mapping           []fileparser.MappingRule `yaml:"mapping"`
	CSVDelimiter      string                   `yaml:"csv_delimiter"`
	CSVSkipCount      int                      `yaml:"csv_skip_count"`
	AllowedOperations string                   `yaml:"allowed_operations"`
	StatUnitType      string                   `yaml:"stat_unit_type"`
	UploadType        string                   `yaml:"upload_type"`
	Priority          string                   `yaml:"priority"`
}

func loadDataSource(path string) (*queuejob.DataSourceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f dataSourceFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	ds := &queuejob.DataSourceConfig{
		Name:         f.Name,
		Mapping:      f.Mapping,
		CSVDelimiter: f.CSVDelimiter,
		CSVSkipCount: f.CSVSkipCount,
	}
	if ds.AllowedOperations, err = datasource.ParseAllowedOperation(f.AllowedOperations); err != nil {
		return nil, err
	}
	if ds.StatUnitType, err = statunit.ParseKind(f.StatUnitType); err != nil {
		return nil, err
	}
	if ds.UploadType, err = datasource.ParseUploadType(f.UploadType); err != nil {
		return nil, err
	}
	if ds.Priority, err = datasource.ParsePriority(f.Priority); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func newImportFileCmd(root *rootOptions) *cobra.Command {
	var opts importFileOptions

	cmd := &cobra.Command{
		Use:   "import-file FILE",
		Short: "Enqueue a file for a data source and run it once",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := loadDataSource(opts.source)
			if err != nil {
				return withCode(exitValidation, err)
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			if _, err := os.Stat(path); err != nil {
				return withCode(exitUsage, err)
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer cfg.Unload()

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return runImportFile(a.context(cmd.Context()), a, ds, path, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Data source YAML file (required)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Uploading user id (required)")
	cmd.Flags().BoolVar(&opts.isAdmin, "admin", false, "Upload with administrator rights")
	cmd.Flags().StringVar(&opts.description, "description", "", "Job description")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runImportFile(ctx context.Context, a *app, ds *queuejob.DataSourceConfig, path string, opts importFileOptions, out io.Writer) error {
	job := &queuejob.ImportJob{
		FileName:    filepath.Base(path),
		FilePath:    path,
		Description: opts.description,
		UserID:      opts.userID,
		IsAdmin:     opts.isAdmin,
	}
	err := composables.InTx(ctx, func(ctx context.Context) error {
		if err := a.jobs.SaveDataSource(ctx, ds); err != nil {
			return err
		}
		job.DataSource = *ds
		return a.jobs.Enqueue(ctx, job)
	})
	if err != nil {
		return withCode(exitDB, fmt.Errorf("enqueue %s: %w", job.FileName, err))
	}
	fmt.Fprintf(out, "enqueued job %d for data source %q\n", job.ID, ds.Name)

	if a.cfg.AMQP.URL != "" {
		if err := notify.Publish(ctx, a.cfg.AMQP.URL, a.cfg.AMQP.Queue, job.ID); err != nil {
			a.logger.WithError(err).Warn("failed to announce enqueued job")
		}
	}

	if err := a.worker.Execute(ctx); err != nil {
		return withCode(exitDB, err)
	}

	done, err := a.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return withCode(exitDB, err)
	}
	if !done.Status.Final() {
		fmt.Fprintf(out, "job %d is %s; another job was ahead of it in the queue\n", done.ID, done.Status)
		return nil
	}
	entries, err := a.logs.ListByJob(ctx, done.ID)
	if err != nil {
		return withCode(exitDB, err)
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Status.String()]++
	}
	fmt.Fprintf(out, "job %d finished %s: %d done, %d warning, %d error\n",
		done.ID, done.Status, counts["Done"], counts["Warning"], counts["Error"])
	if done.Note != "" {
		fmt.Fprintf(out, "note: %s\n", done.Note)
	}
	return nil
}
