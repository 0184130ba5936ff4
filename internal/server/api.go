package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthBody はヘルスチェックのレスポンス
type HealthBody struct {
	Status    string    `json:"status" enum:"healthy" doc:"Service health"`
	Timestamp time.Time `json:"timestamp" doc:"Server time"`
}

// HealthOutput はヘルスチェックの出力
type HealthOutput struct {
	Body HealthBody
}

// CaptureStatus はキャプチャループの状態
type CaptureStatus struct {
	Running       bool       `json:"running" doc:"Whether the capture loop owns the device"`
	FramesEmitted uint64     `json:"frames_emitted" doc:"Frames published since start"`
	LastFrameAt   *time.Time `json:"last_frame_at,omitempty" doc:"Capture time of the latest frame"`
	Width         int        `json:"width" doc:"Device resolution width"`
	Height        int        `json:"height" doc:"Device resolution height"`
}

// StreamStatus は配信の統計
type StreamStatus struct {
	Published uint64 `json:"published" doc:"Chunks handed to the broadcaster"`
	Dropped   uint64 `json:"dropped" doc:"Chunks discarded for slow clients"`
}

// ServerInfo はリッスン先の情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusBody は状態取得のレスポンス
type StatusBody struct {
	Status      string        `json:"status" enum:"running,stopping" doc:"Overall state"`
	Device      string        `json:"device" doc:"Capture device path"`
	Backend     string        `json:"backend" doc:"Capture backend"`
	Capture     CaptureStatus `json:"capture"`
	Stream      StreamStatus  `json:"stream"`
	Subscribers int           `json:"subscribers" doc:"Connected stream clients"`
	Server      ServerInfo    `json:"server"`
	Reason      string        `json:"reason,omitempty" doc:"Shutdown reason once stopping"`
	Timestamp   time.Time     `json:"timestamp"`
}

// StatusOutput は状態取得の出力
type StatusOutput struct {
	Body StatusBody
}

// registerAPI はhumaのエンドポイントを登録する
func (s *Server) registerAPI() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports healthy until the shutdown signal fires",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		if s.signal.Fired() {
			var errs []error
			if reason := s.signal.Reason(); reason != nil {
				errs = append(errs, reason)
			}
			return nil, huma.Error503ServiceUnavailable("shutting down", errs...)
		}
		return &HealthOutput{
			Body: HealthBody{
				Status:    "healthy",
				Timestamp: time.Now(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Stream status",
		Description: "Capture loop state, connected clients and listen address",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*StatusOutput, error) {
		return &StatusOutput{Body: s.status()}, nil
	})
}

// status は現在の状態を組み立てる
func (s *Server) status() StatusBody {
	stats := s.loop.Stats()

	body := StatusBody{
		Status:  "running",
		Device:  s.config.Camera.Device,
		Backend: s.config.Camera.Backend,
		Capture: CaptureStatus{
			Running:       stats.Running,
			FramesEmitted: stats.FramesEmitted,
			Width:         stats.Width,
			Height:        stats.Height,
		},
		Stream: StreamStatus{
			Published: s.hub.Published(),
			Dropped:   s.hub.Dropped(),
		},
		Subscribers: s.hub.Subscribers(),
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Timestamp: time.Now(),
	}

	if !stats.LastFrameAt.IsZero() {
		last := stats.LastFrameAt
		body.Capture.LastFrameAt = &last
	}
	if s.signal.Fired() {
		body.Status = "stopping"
		if reason := s.signal.Reason(); reason != nil {
			body.Reason = reason.Error()
		}
	}

	return body
}
