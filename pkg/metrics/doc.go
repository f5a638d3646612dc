/*
Package metrics provides Prometheus metrics for groupsync runs.

All collectors are registered on the default registry at init and exposed by
Handler. A sync run started with --metrics-addr serves them on /metrics for
the lifetime of the process, which is enough for a scrape by a pushgateway
sidecar or for inspecting a long drain interactively.

# Metrics

	groupsync_jobs_total{outcome}                 done, aborted, yielded, nothing_to_sync
	groupsync_steps_total{handler,status}         success, failure
	groupsync_step_duration_seconds{handler}      per step histogram
	groupsync_members_removed_total{group}        credited removals
	groupsync_members_added_total{group}          credited additions
	groupsync_group_members{group,side}           staged counts of the last run
	groupsync_identities_skipped_total{reason}    deleted, opt_out, do_not_email, no_email, error
	groupsync_notifications_failed_total          notifications that could not be delivered

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StepDuration, step.Handler)
*/
package metrics
