package controllers

import (
	"fmt"
	"net/http"
	"rsd/internal/channel"
	"rsd/internal/syncer"
	"time"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	broker    *channel.Broker
	syncer    *syncer.Manager
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Streams       int     `json:"streams"`
	Subscribers   int     `json:"subscribers"`
	PendingCount  int     `json:"pending_count"`
	FailedCount   int     `json:"failed_count"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	streams, subscribers := hc.broker.Stats()
	status := hc.syncer.Status()
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Streams:       streams,
		Subscribers:   subscribers,
		PendingCount:  status.PendingCount,
		FailedCount:   status.FailedCount,
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(broker *channel.Broker, sm *syncer.Manager) *HealthController {
	return &HealthController{
		broker:    broker,
		syncer:    sm,
		startTime: time.Now(),
	}
}
