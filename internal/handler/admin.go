package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"lostfound-rest-api/internal/middleware"
	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/service"
	"lostfound-rest-api/pkg/apierror"
	"lostfound-rest-api/pkg/response"
)

// ItemStatser reports aggregate item counts.
type ItemStatser interface {
	Stats(ctx context.Context) (*model.ItemStats, error)
}

// SweepRunner runs a retention sweep on demand.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*service.SweepResult, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	items     ItemStatser
	sweeper   SweepRunner
	loginKey  string
	dbType    string
	cacheType string
	startTime time.Time
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(items ItemStatser, sweeper SweepRunner, loginKey, dbType, cacheType string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		items:     items,
		sweeper:   sweeper,
		loginKey:  loginKey,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
		logger:    logger.With("component", "admin_handler"),
	}
}

type loginRequest struct {
	Key string `json:"key"`
}

// VerifyLogin handles POST /api/admin/login
// The key may come in the X-Login-Key header or as {"key": "..."}.
func (h *AdminHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(middleware.LoginKeyHeader)
	if key == "" {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, apierror.BadRequest("Invalid JSON body"))
			return
		}
		key = req.Key
	}

	if h.loginKey == "" {
		response.OK(w, map[string]interface{}{"valid": true, "protected": false})
		return
	}
	if !middleware.ValidLoginKey(key, h.loginKey) {
		h.logger.WarnContext(r.Context(), "admin login rejected", "remote_addr", r.RemoteAddr)
		response.Error(w, apierror.Unauthorized("Invalid login key"))
		return
	}
	response.OK(w, map[string]interface{}{"valid": true, "protected": true})
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	itemStats, err := h.items.Stats(r.Context())
	if err == nil {
		stats["items"] = itemStats
	} else {
		h.logger.ErrorContext(r.Context(), "failed to load item stats", "error", err)
		stats["items"] = map[string]interface{}{"status": "error"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

type sweepResponse struct {
	Scanned       int   `json:"scanned"`
	Removed       int   `json:"removed"`
	Skipped       int   `json:"skipped"`
	Failed        int   `json:"failed"`
	ImageFailures int   `json:"imageFailures"`
	ExpiringSoon  int64 `json:"expiringSoon"`
	LeaseBusy     bool  `json:"leaseBusy"`
	DurationMS    int64 `json:"durationMs"`
}

// RunSweep handles POST /api/admin/sweep
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		response.Error(w, apierror.ServiceUnavailable("Sweeper is not running"))
		return
	}

	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.OK(w, sweepResponse{
		Scanned:       result.Scanned,
		Removed:       result.Removed,
		Skipped:       result.Skipped,
		Failed:        result.Failed,
		ImageFailures: result.ImageFailures,
		ExpiringSoon:  result.ExpiringSoon,
		LeaseBusy:     result.LeaseBusy,
		DurationMS:    result.Duration.Milliseconds(),
	})
}
