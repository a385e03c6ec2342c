package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArtifactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfpager_artifacts_total",
			Help: "Message artifacts discovered in the pager directory, by classified kind",
		},
		[]string{"kind"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfpager_commands_total",
			Help: "Commands recognized in received payloads",
		},
		[]string{"kind", "addressed"},
	)

	TransmitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfpager_transmits_total",
			Help: "Outbound messages handed to the paging application",
		},
		[]string{"sink", "result"},
	)

	ChatActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfpager_chat_actions_total",
			Help: "Chat messages sent or edited",
		},
		[]string{"action", "result"},
	)

	WatcherReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hfpager_watcher_read_errors_total",
			Help: "Artifacts that could not be read",
		},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
