// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics declares the Prometheus collectors exported by dxtr.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dxtr_tool_dispatch_total",
		Help: "Tool dispatches by tool and outcome",
	}, []string{"tool", "outcome"})

	ToolDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dxtr_tool_dispatch_duration_seconds",
		Help:    "Tool dispatch duration",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"tool"})

	ChatRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dxtr_chat_rounds",
		Help:    "Inference round-trips per user turn",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	ChatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dxtr_chat_turns_total",
		Help: "User turns by final state",
	}, []string{"state"})

	PapersScoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dxtr_papers_scored_total",
		Help: "Papers scored by outcome",
	}, []string{"outcome"})

	ExcludedForksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dxtr_excluded_forks_total",
		Help: "Scoring forks excluded after an unparsable score",
	})

	ResearchChunks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dxtr_research_chunks",
		Help:    "Chunks gathered per research request",
		Buckets: []float64{1, 3, 5, 8, 10, 15, 20},
	}, []string{"kind"})
)
