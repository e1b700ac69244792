package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/ranking"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// RankRequest is the body of POST /v1/rank.
type RankRequest struct {
	Profiles []model.RawProfile     `json:"profiles"`
	Context  roi.PartnershipContext `json:"context"`
	Top      int                    `json:"top,omitempty"`
	MinScore float64                `json:"min_score,omitempty"`
	Save     bool                   `json:"save,omitempty"`
}

// RankResponse is the body returned by POST /v1/rank.
type RankResponse struct {
	RunID      string                  `json:"run_id,omitempty"`
	ConfigHash string                  `json:"config_hash"`
	Candidates []model.RankedCandidate `json:"candidates"`
	Excluded   []model.Exclusion       `json:"excluded,omitempty"`
}

// CompareRequest is the body of POST /v1/compare.
type CompareRequest struct {
	A       model.RawProfile       `json:"a"`
	B       model.RawProfile       `json:"b"`
	Context roi.PartnershipContext `json:"context"`
}

// RunsResponse is the body returned by GET /v1/runs.
type RunsResponse struct {
	Runs []model.Run `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":      "ok",
		"config_hash": s.engine.Settings().Hash(),
	}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("api: store ping failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["store"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["store"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Profiles) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "profiles is required")
		return
	}
	if req.Top < 0 || req.MinScore < 0 || req.MinScore > 1 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "top must be >= 0 and min_score between 0 and 1")
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "run store is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.engine.Rank(ctx, req.Profiles, ranking.Options{Context: req.Context})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	resp := RankResponse{
		ConfigHash: res.ConfigHash,
		Candidates: res.Candidates,
		Excluded:   res.Excluded,
	}
	if req.Top > 0 || req.MinScore > 0 {
		resp.Candidates = ranking.TopPartners(res, req.Top, req.MinScore)
	}
	if resp.Candidates == nil {
		resp.Candidates = []model.RankedCandidate{}
	}

	if req.Save {
		run, err := s.store.SaveRun(ctx, model.Run{
			ConfigHash: res.ConfigHash,
			Candidates: res.Candidates,
			Excluded:   res.Excluded,
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		resp.RunID = run.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	cmp, err := s.engine.CompareProfiles(ctx, req.A, req.B, ranking.Options{Context: req.Context})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	filter := store.RunFilter{ConfigHash: r.URL.Query().Get("config_hash")}
	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "run store is not configured")
		return false
	}
	return true
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
