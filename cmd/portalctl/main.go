// portalctl is the operator CLI: one-shot lifecycle polls, retention
// sweeps, and orphan workdir management against the same database and job
// directory the server uses.
package main

import (
	"context"
	"fmt"
	"os"

	"fold-portal/config"
	"fold-portal/core/cleanup"
	"fold-portal/core/poller"
	"fold-portal/core/repository"
	"fold-portal/core/slurm"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator tooling for the fold portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(pollCmd(), cleanupCmd(), orphansCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg  *config.Config
	db   *repository.DB
	jobs *repository.JobRepository
	cons *repository.ConsoleRepository
	fs   afero.Fs
}

func setup() (*env, error) {
	cfg := config.Load()
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:  cfg,
		db:   db,
		jobs: repository.NewJobRepository(db),
		cons: repository.NewConsoleRepository(db, repository.QuotaDefaults{
			MaxConcurrentJobs: cfg.DefaultMaxConcurrentJobs,
			MaxQueuedJobs:     cfg.DefaultMaxQueuedJobs,
			JobsPerDay:        cfg.DefaultJobsPerDay,
			RetentionDays:     cfg.DefaultRetentionDays,
		}),
		fs: afero.NewOsFs(),
	}, nil
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one lifecycle reconciliation pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			var scheduler slurm.Client
			if e.cfg.FakeSlurm {
				scheduler = slurm.NewSimulatedClient(e.fs, e.cfg.JobBaseDir)
			} else {
				scheduler = slurm.NewLiveClient(e.fs, e.cfg.SubmitTimeout)
			}

			logrus.SetLevel(logrus.InfoLevel)
			p := poller.New(e.jobs, scheduler, e.cfg.PollInterval, e.cfg.StaleJobTimeout)
			p.Poll(context.Background())
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep expired job workdirs (dry run unless --apply)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			svc := cleanup.NewService(e.jobs, e.cons, e.fs, e.cfg.JobBaseDir)
			report, err := svc.Sweep(!apply)
			if err != nil {
				return err
			}

			mode := "dry run"
			if apply {
				mode = "applied"
			}
			fmt.Printf("Retention sweep (%s): scanned=%d deleted=%d skipped=%d errors=%d reclaimed=%s\n",
				mode, report.Scanned, report.Deleted, report.Skipped, report.Errors, humanBytes(report.Reclaimed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "actually delete workdirs")
	return cmd
}

func orphansCmd() *cobra.Command {
	var del bool
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Report workdirs without a job record and jobs without a workdir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			svc := cleanup.NewService(e.jobs, e.cons, e.fs, e.cfg.JobBaseDir)

			dirs, err := svc.DetectOrphanWorkdirs()
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				fmt.Println("No orphan workdirs.")
			}
			for _, d := range dirs {
				fmt.Printf("workdir %s  %s  modified %s\n", d.Name, humanBytes(d.Size), d.Modified.Format("2006-01-02 15:04"))
				if del {
					if err := svc.DeleteOrphanWorkdir(d.Name); err != nil {
						fmt.Fprintf(os.Stderr, "  failed to delete: %v\n", err)
						continue
					}
					fmt.Println("  deleted")
				}
			}

			lost, err := svc.DetectOrphanJobs()
			if err != nil {
				return err
			}
			for _, job := range lost {
				fmt.Printf("job %s (%s, %s) has no workdir\n", job.ID, job.Runner, job.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&del, "delete", false, "delete orphan workdirs after listing them")
	return cmd
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
