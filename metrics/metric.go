// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package metrics exposes Prometheus instrumentation for the store's
// hot operations and per-core page residency.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	Reads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimson",
		Name:      "reads_total",
		Help:      "Completed object reads, by result.",
	}, []string{"result"})

	Writes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimson",
		Name:      "writes_total",
		Help:      "Completed object writes, by result.",
	}, []string{"result"})

	HolePunches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimson",
		Name:      "hole_punches_total",
		Help:      "Completed hole-punch operations, by result.",
	}, []string{"result"})

	CommitBarrierWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crimson",
		Name:      "commit_barrier_wait_seconds",
		Help:      "Time a commit spent waiting for preceding mutations to finish.",
		Buckets:   prometheus.DefBuckets,
	})

	ResidentPages = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crimson",
		Name:      "resident_pages",
		Help:      "Number of resident pages a single object holds on one core's page slice.",
	}, []string{"object", "core"})
)

func init() {
	Registry.MustRegister(
		Reads,
		Writes,
		HolePunches,
		CommitBarrierWaitSeconds,
		ResidentPages,
	)
}

// DeleteResidentPages removes oid's per-core resident_pages series. It
// must be called whenever an object is removed, or the gauge's label
// cardinality grows without bound for the life of the process.
func DeleteResidentPages(oid string, cores int) {
	for core := 0; core < cores; core++ {
		ResidentPages.DeleteLabelValues(oid, strconv.Itoa(core))
	}
}
