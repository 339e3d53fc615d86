package api

import (
	"net/http"
	"runtime"
	"time"
)

// Service states reported by GET /api/status.
const (
	statusOperational  = "operational"
	statusDegraded     = "degraded"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

// SystemStatus is the GET /api/status response.
type SystemStatus struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  ServiceStatus  `json:"services"`
	System    SystemInfo     `json:"system"`
	WebSocket WSMetrics      `json:"websocket"`
	Runtime   RuntimeMetrics `json:"runtime"`
}

// ServiceStatus reports each dependency.
type ServiceStatus struct {
	Backend  string `json:"backend"`
	Database string `json:"database"`
	MQTT     string `json:"mqtt"`
}

// SystemInfo describes the running process.
type SystemInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	GoVersion     string `json:"goVersion"`
	Platform      string `json:"platform"`
	Version       string `json:"version"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memoryAllocMb"`
	MemoryTotalMB float64 `json:"memoryTotalMb"`
	NumGC         uint32  `json:"numGc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connectedClients"`
}

// handleStatus reports database and broker connectivity. The overall
// status is degraded when either is down; the endpoint itself still
// answers 200.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := SystemStatus{
		Status:    statusOperational,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: ServiceStatus{
			Backend:  statusOperational,
			Database: statusDisconnected,
			MQTT:     statusDisconnected,
		},
		System: SystemInfo{
			UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
			GoVersion:     runtime.Version(),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			Version:       s.version,
		},
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.store.HealthCheck(r.Context()).Healthy() {
		resp.Services.Database = statusConnected
	}
	if s.dispatcher.ConnectionStatus() {
		resp.Services.MQTT = statusConnected
	}
	if resp.Services.Database != statusConnected || resp.Services.MQTT != statusConnected {
		resp.Status = statusDegraded
	}
	if s.hub != nil {
		resp.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}
