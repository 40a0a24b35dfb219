package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sanketb-14/Streamline-sub000/internal/ffmpeg"
)

// Pinger reports whether the catalog database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FFmpegDetector locates the encoder binary. Clear drops a cached result so
// the next Detect looks again.
type FFmpegDetector interface {
	Detect(ctx context.Context) (*ffmpeg.BinaryInfo, error)
	Clear()
}

// SlotPool reports transcode capacity.
type SlotPool interface {
	Size() int
	InUse() int
}

// Component states reported by the health endpoints.
const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusNotConfigured = "not_configured"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        Pinger
	ffmpeg    FFmpegDetector
	encoders  []string
	pool      SlotPool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database checked by readiness.
func (h *HealthHandler) WithDB(db Pinger) *HealthHandler {
	h.db = db
	return h
}

// WithFFmpeg sets the encoder detector checked by readiness. The binary must
// meet the minimum version and, when it lists its encoders, offer each of
// encoders.
func (h *HealthHandler) WithFFmpeg(d FFmpegDetector, encoders ...string) *HealthHandler {
	h.ffmpeg = d
	h.encoders = encoders
	return h
}

// WithPool sets the transcode pool reported by /health.
func (h *HealthHandler) WithPool(p SlotPool) *HealthHandler {
	h.pool = p
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including host load and transcode capacity",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Ready when the database answers and ffmpeg is available",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// CPUInfo holds host load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds host memory usage.
type MemoryInfo struct {
	Total       string  `json:"total,omitempty"`
	Used        string  `json:"used,omitempty"`
	Available   string  `json:"available,omitempty"`
	UsedPercent float64 `json:"used_percent"`
	GoHeap      string  `json:"go_heap"`
}

// PoolInfo holds transcode slot occupancy.
type PoolInfo struct {
	Size  int `json:"size"`
	InUse int `json:"in_use"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUInfo       CPUInfo           `json:"cpu_info"`
	Memory        MemoryInfo        `json:"memory"`
	Transcode     *PoolInfo         `json:"transcode,omitempty"`
	Checks        map[string]string `json:"checks"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	checks := h.checks(ctx)
	status := "healthy"
	for _, c := range checks {
		if c == StatusError {
			status = "degraded"
		}
	}

	resp := HealthResponse{
		Status:        status,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPUInfo:       cpuInfo(),
		Memory:        memoryInfo(),
		Checks:        checks,
	}
	if h.pool != nil {
		resp.Transcode = &PoolInfo{Size: h.pool.Size(), InUse: h.pool.InUse()}
	}
	return &HealthOutput{Body: resp}, nil
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = StatusOK
	return out, nil
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness probe.
type ReadyzOutput struct {
	Status int
	Body   struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// GetReadyz reports whether uploads and queries can be served.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *ReadyzInput) (*ReadyzOutput, error) {
	out := &ReadyzOutput{Status: http.StatusOK}
	out.Body.Status = "ready"
	out.Body.Components = h.checks(ctx)
	for _, c := range out.Body.Components {
		if c != StatusOK {
			out.Status = http.StatusServiceUnavailable
			out.Body.Status = "not_ready"
		}
	}
	return out, nil
}

func (h *HealthHandler) checks(ctx context.Context) map[string]string {
	checks := map[string]string{
		"database": StatusNotConfigured,
		"ffmpeg":   StatusNotConfigured,
	}
	if h.db != nil {
		checks["database"] = StatusOK
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = StatusError
		}
	}
	if h.ffmpeg != nil {
		checks["ffmpeg"] = h.ffmpegStatus(ctx)
	}
	return checks
}

func (h *HealthHandler) ffmpegStatus(ctx context.Context) string {
	info, err := h.ffmpeg.Detect(ctx)
	if err != nil {
		return StatusError
	}
	usable := info.SupportsMinVersion(ffmpeg.MinMajorVersion, ffmpeg.MinMinorVersion)
	if usable && len(info.Encoders) > 0 {
		for _, enc := range h.encoders {
			if !info.HasEncoder(enc) {
				usable = false
				break
			}
		}
	}
	if !usable {
		// A replaced binary is picked up on the next check.
		h.ffmpeg.Clear()
		return StatusError
	}
	return StatusOK
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
		}
	}
	return info
}

func memoryInfo() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := MemoryInfo{GoHeap: humanize.IBytes(ms.HeapAlloc)}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.Total = humanize.IBytes(vm.Total)
		info.Used = humanize.IBytes(vm.Used)
		info.Available = humanize.IBytes(vm.Available)
		info.UsedPercent = vm.UsedPercent
	}
	return info
}
