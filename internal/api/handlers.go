package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mattjoyce/xxl-executor/internal/protocol"
)

const killNotSupportedMsg = "not supported: this executor cannot cancel running jobs"

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		RunningJobs:   s.runner.Running(),
	})
}

// handleBeat handles POST /beat.
func (s *Server) handleBeat(w http.ResponseWriter, r *http.Request) {
	respondReturn(w, protocol.ReturnT{Code: protocol.CodeSuccess})
}

// handleIdleBeat handles POST /idleBeat. A missing jobId is treated as -1,
// which is never running.
func (s *Server) handleIdleBeat(w http.ResponseWriter, r *http.Request) {
	req := protocol.IdleBeatParam{JobID: -1}
	if err := protocol.DecodeBody(r.Body, &req); err != nil {
		respondReturn(w, protocol.Fail(err.Error()))
		return
	}

	if s.runner.IsRunning(req.JobID) {
		respondReturn(w, protocol.Fail("busy"))
		return
	}
	respondReturn(w, protocol.Success("idle"))
}

// handleRun handles POST /run. It returns once the invocation is accepted or
// rejected; the outcome arrives later through the completion callback.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req protocol.TriggerParam
	if err := protocol.DecodeBody(r.Body, &req); err != nil {
		respondReturn(w, protocol.Fail(err.Error()))
		return
	}

	if err := s.runner.Run(req); err != nil {
		s.logger.Warn("run rejected",
			"job_id", req.JobID,
			"handler", req.ExecutorHandler,
			"log_id", req.LogID,
			"error", err,
		)
		respondReturn(w, protocol.Fail(err.Error()))
		return
	}
	respondReturn(w, protocol.ReturnT{Code: protocol.CodeSuccess})
}

// handleKill handles POST /kill. Cancellation is not implemented.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req protocol.KillParam
	_ = protocol.DecodeBody(r.Body, &req)
	s.logger.Info("kill requested but not supported", "job_id", req.JobID)
	respondReturn(w, protocol.Fail(killNotSupportedMsg))
}

// handleLog handles POST /log.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var req protocol.LogParam
	if err := protocol.DecodeBody(r.Body, &req); err != nil {
		respondReturn(w, protocol.Fail(err.Error()))
		return
	}

	res, err := s.logs.Read(req.ScheduleTime(), req.LogID, req.FromLineNum)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("job log not found", "log_id", req.LogID, "log_date_time", req.ScheduleTime())
		respondReturn(w, protocol.Fail("job log not found: "+err.Error()))
		return
	}
	if err != nil {
		s.logger.Error("failed to read job log", "log_id", req.LogID, "error", err)
		respondReturn(w, protocol.Fail(err.Error()))
		return
	}
	respondReturn(w, protocol.ReturnT{Code: protocol.CodeSuccess, Content: res})
}

// respondReturn writes a ReturnT envelope. Protocol outcomes always travel
// with HTTP 200.
func respondReturn(w http.ResponseWriter, ret protocol.ReturnT) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = protocol.EncodeReturn(w, ret)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
