package metrics

import (
	"net/http"

	"github.com/cuemby/groupsync/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupsync_jobs_total",
			Help: "Total number of reconciliation jobs by outcome",
		},
		[]string{"outcome"},
	)

	// Step metrics
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupsync_steps_total",
			Help: "Total number of executed steps by handler and status",
		},
		[]string{"handler", "status"},
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupsync_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	// Membership metrics
	MembersRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupsync_members_removed_total",
			Help: "Total number of members removed from remote groups",
		},
		[]string{"group"},
	)

	MembersAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupsync_members_added_total",
			Help: "Total number of members added to remote groups",
		},
		[]string{"group"},
	)

	GroupMembers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groupsync_group_members",
			Help: "Members staged in the last run by group and side",
		},
		[]string{"group", "side"},
	)

	IdentitiesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupsync_identities_skipped_total",
			Help: "Local membership records excluded from staging by reason",
		},
		[]string{"reason"},
	)

	// Notification metrics
	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupsync_notifications_failed_total",
			Help: "Total number of batch notifications that could not be sent",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(StepsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(MembersRemoved)
	prometheus.MustRegister(MembersAdded)
	prometheus.MustRegister(GroupMembers)
	prometheus.MustRegister(IdentitiesSkipped)
	prometheus.MustRegister(NotificationsFailed)
}

// ObserveStats publishes the staged member counts of a stats read-back
func ObserveStats(stats types.Stats) {
	for group, s := range stats {
		GroupMembers.WithLabelValues(group, "remote").Set(float64(s.RemoteCount))
		GroupMembers.WithLabelValues(group, "local").Set(float64(s.LocalCount))
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
