package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/runner"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "groupsync",
	Short: "groupsync - mirror local group membership into remote groups",
	Long: `groupsync keeps the membership of externally hosted groups in step with
the groups of a local system of record.

Each run stages both memberships, removes remote members that are no longer
in any mapped local group and adds the local members that are missing. A run
is a checkpointed queue of steps: if it stops half way, 'groupsync resume'
picks it up at the next pending step.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"groupsync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./groupsync.yaml)")
	flags.String("data-dir", "./groupsync-data", "Directory holding staged snapshots, stats and checkpoints")
	flags.String("queue-name", runner.DefaultQueueName, "Checkpoint name of the job")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}

// addPipelineFlags registers the flags of commands that execute steps
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("local-source", "", "YAML export of the local groups and contacts")
	cmd.Flags().String("remote-directory", "", "YAML directory file of the remote groups")
	cmd.Flags().String("role", "MEMBER", "Role granted to added members")
	cmd.Flags().Int("min-members", 0, "Skip local groups with fewer members")
	cmd.Flags().String("sync-location-type", "Google", "Address type preferred for the remote group")
	cmd.Flags().String("admin-url", "", "Group admin link in notifications (%s is the group id)")
	cmd.Flags().String("end-url", "", "Page to show once a job completes")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().Bool("step", false, "Run a single step and return")
	cmd.Flags().Bool("headless", false, "Suppress the completion page, for cron triggers")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Plan a new job for every mapped group and run it",
	Long: `Plan a new job for every mapped group and run it.

Any checkpoint left by a previous job under the same queue name is replaced
and the stats are reset. When no mapping qualifies nothing is planned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, true)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue the queued job from its next pending step",
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, false)
	},
}

func init() {
	addPipelineFlags(syncCmd)
	addPipelineFlags(resumeCmd)
}

func execute(cmd *cobra.Command, plan bool) error {
	var opts []runner.Option
	if headless, _ := cmd.Flags().GetBool("headless"); headless {
		opts = append(opts, runner.WithSkipEndURL())
	}

	a, err := openApp(cmd, true, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if plan {
		cp, err := a.reconciler.Plan(ctx, a.runner)
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Println("Nothing to sync. Check that group mappings are configured for groups with enough members.")
			return nil
		}
		fmt.Printf("%s\n", cp.Title)
		fmt.Printf("  Job ID: %s\n", cp.JobID)
		fmt.Printf("  Steps: %d\n", len(cp.Steps))
		fmt.Println()
	}

	mode := runner.ModeDrain
	if step, _ := cmd.Flags().GetBool("step"); step {
		mode = runner.ModeStep
	}

	done := a.watch()
	out, err := a.runner.Resume(ctx, mode)
	if a.broker != nil {
		a.broker.Stop()
	}
	<-done

	if err != nil {
		if errors.Is(err, errors.ErrNoCheckpoint) {
			fmt.Println("No job is queued.")
			return nil
		}
		if out != nil && out.FailedStep != "" {
			return fmt.Errorf("job aborted at %q: %w", out.FailedStep, err)
		}
		return err
	}

	if out.Status != types.JobStatusDone {
		fmt.Printf("\n%d steps remaining. Run 'groupsync resume' to continue.\n", out.Remaining)
		return nil
	}

	fmt.Println()
	fmt.Println("✓ Sync complete")
	printStats(out.Stats)
	if out.EndURL != "" {
		fmt.Printf("\nResults: %s\n", out.EndURL)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queued job and its remaining steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		cp, err := a.runner.Status(cmd.Context())
		if errors.Is(err, errors.ErrNoCheckpoint) {
			fmt.Println("No job is queued.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Job %s (%s)\n", cp.JobID, cp.Status)
		fmt.Printf("  Updated: %s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		if cp.FailedStep != "" {
			fmt.Printf("  Failed step: %s\n", cp.FailedStep)
			fmt.Printf("  Error: %s\n", cp.LastError)
		}

		groups := make([]string, 0, len(cp.States))
		for g := range cp.States {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		fmt.Println("\nGroups:")
		for _, g := range groups {
			fmt.Printf("  %-40s %s\n", g, cp.States[g])
		}

		fmt.Printf("\nPending steps (%d):\n", len(cp.Steps))
		for _, s := range cp.Steps {
			fmt.Printf("  %s\n", s.Title)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the counters of the last or current job",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.runner.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(st) == 0 {
			fmt.Println("No stats recorded.")
			return nil
		}
		printStats(st)
		return nil
	},
}

func printStats(st types.Stats) {
	groups := make([]string, 0, len(st))
	for g := range st {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tREMOTE\tLOCAL\tADDED\tREMOVED")
	for _, g := range groups {
		s := st[g]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", g, s.RemoteCount, s.LocalCount, s.Added, s.Removed)
	}
	w.Flush()
}
