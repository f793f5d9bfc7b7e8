package nestedset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mutationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_mutations_applied",
	Help: "Number of positioning changes applied, by intent and outcome",
}, []string{"intent", "outcome"})

var rowsShifted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_rows_shifted",
	Help: "Number of rows rewritten by gap and move updates",
})

var subtreesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_subtrees_deleted",
	Help: "Number of subtrees deleted",
}, []string{"mode"})

var nodesRestored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nestedset_nodes_restored",
	Help: "Number of soft-deleted nodes restored",
})

var nodesRenumbered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nestedset_nodes_renumbered",
	Help: "Number of nodes rewritten by fix and rebuild passes",
}, []string{"op"})

var consistencyErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "nestedset_consistency_errors",
	Help: "Error counts of the last consistency check, by class",
}, []string{"class"})
