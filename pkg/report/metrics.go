// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package report

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/q191201771/flvfix/pkg/fix"
)

// Metrics 修复任务的统计，写成node_exporter textfile collector可以读取的文件
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Issues       *prometheus.CounterVec
	NeedFix      prometheus.Counter
	Unrepairable prometheus.Counter
	OutputFiles  prometheus.Counter
	OutputBytes  prometheus.Counter
	InputBytes   prometheus.Counter
	RunDuration  prometheus.Histogram

	mu sync.Mutex
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flvfix_runs_total",
				Help: "Total number of processed input files",
			},
			[]string{"mode", "status"}, // mode: fix or analyze
		),
		Issues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flvfix_issues_total",
				Help: "Total number of detected issues",
			},
			[]string{"type"},
		),
		NeedFix: factory.NewCounter(prometheus.CounterOpts{
			Name: "flvfix_need_fix_total",
			Help: "Total number of input files which need to be fixed",
		}),
		Unrepairable: factory.NewCounter(prometheus.CounterOpts{
			Name: "flvfix_unrepairable_total",
			Help: "Total number of input files with unrepairable issues",
		}),
		OutputFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "flvfix_output_files_total",
			Help: "Total number of output files",
		}),
		OutputBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "flvfix_output_bytes_total",
			Help: "Total size of output files in bytes",
		}),
		InputBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "flvfix_input_bytes_total",
			Help: "Total size of input files in bytes",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flvfix_run_duration_seconds",
			Help:    "Time spent on one input file",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~164s
		}),
	}
}

// Observe 记录一个任务的结果，可以并发调用
func (m *Metrics) Observe(resp *fix.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := "fix"
	if resp.Analyze {
		mode = "analyze"
	}
	m.Runs.WithLabelValues(mode, string(resp.Status)).Inc()

	it := resp.IssueTypes
	m.Issues.WithLabelValues("other").Add(float64(it.Other))
	m.Issues.WithLabelValues("unrepairable").Add(float64(it.Unrepairable))
	m.Issues.WithLabelValues("timestamp_jump").Add(float64(it.TimestampJump))
	m.Issues.WithLabelValues("timestamp_offset").Add(float64(it.TimestampOffset))
	m.Issues.WithLabelValues("decoding_header").Add(float64(it.DecodingHeader))
	m.Issues.WithLabelValues("repeating_data").Add(float64(it.RepeatingData))

	if resp.NeedFix {
		m.NeedFix.Inc()
	}
	if resp.Unrepairable {
		m.Unrepairable.Inc()
	}
	m.OutputFiles.Add(float64(resp.OutputFileCount))
	for _, f := range resp.OutputFiles {
		m.OutputBytes.Add(float64(f.Size))
	}
	m.InputBytes.Add(float64(resp.InputSize))
	m.RunDuration.Observe(float64(resp.ElapsedMs) / 1000)
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile 原子的写入`filename`
func (m *Metrics) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
