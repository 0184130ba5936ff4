// Package metrics はキャプチャと配信のPrometheusメトリクスを定義する
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesEmitted は配信したフレーム数
	FramesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camfeed",
		Subsystem: "capture",
		Name:      "frames_emitted_total",
		Help:      "Encoded frames published to stream subscribers",
	})

	// EncodedBytes は配信したJPEGの合計バイト数
	EncodedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camfeed",
		Subsystem: "capture",
		Name:      "encoded_bytes_total",
		Help:      "Total JPEG payload bytes produced",
	})

	// CaptureFailures は停止要因ごとのキャプチャ失敗数
	CaptureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camfeed",
		Subsystem: "capture",
		Name:      "failures_total",
		Help:      "Capture loop failures by stage",
	}, []string{"stage"})

	// CaptureRunning はキャプチャループの動作状態（1: 動作中）
	CaptureRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camfeed",
		Subsystem: "capture",
		Name:      "running",
		Help:      "Whether the capture loop currently owns the device",
	})

	// ActiveClients は接続中のストリームクライアント数
	ActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camfeed",
		Subsystem: "stream",
		Name:      "active_clients",
		Help:      "Number of connected /video_feed clients",
	})

	// ChunksDropped は遅いクライアントのために破棄したチャンク数
	ChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camfeed",
		Subsystem: "stream",
		Name:      "chunks_dropped_total",
		Help:      "Chunks replaced before a slow subscriber consumed them",
	})
)

// 失敗ステージのラベル値
const (
	StageOpen = "open"
	StageRead = "read"
)
