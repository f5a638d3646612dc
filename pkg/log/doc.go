/*
Package log provides structured logging for groupsync using zerolog.

A single global Logger is configured once by Init, normally from the CLI's
--log-level and --log-json flags. Packages never write to it directly for
long-lived work; they derive a component logger at construction time:

	logger := log.WithComponent("runner")
	logger.Info().Str("job_id", cp.JobID).Int("steps", len(cp.Steps)).Msg("job planned")

Until Init runs the global Logger discards everything, which keeps library
use and tests quiet.

# Fields

The helpers attach the fields used across the pipeline:

  - component: runner, reconciler, applier, resolver, storage, notify
  - job_id:    the uuid of the running Checkpoint
  - group_id:  the remote group id of the current task

WithJobID and WithGroupID extend a component logger rather than the global
one, so the component field is kept:

	logger := log.WithGroupID(log.WithJobID(rc.logger, sc.JobID), sc.GroupID)

# Output

JSON output is meant for cron and other headless triggers; the console writer
is the default for interactive runs.

	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: os.Stderr})
*/
package log
