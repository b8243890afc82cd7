package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/prefs"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/scheduler"
	"github.com/quantumlife/hearth/internal/state"
	"github.com/quantumlife/hearth/internal/store"
)

const maxActionBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"websocket_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.State())
}

func sliceOf(st state.GlobalState, name string) (any, bool) {
	switch strings.ToLower(name) {
	case "app":
		return st.App, true
	case "calendar":
		return st.Calendar, true
	case "shopping":
		return st.Shopping, true
	case "auth":
		return st.Auth, true
	case "user":
		return st.User, true
	case "notifications":
		return st.Notifications, true
	case "recipes":
		return st.Recipes, true
	case "documents":
		return st.Documents, true
	}
	return nil, false
}

func (s *Server) handleGetSlice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "slice")
	v, ok := sliceOf(s.store.State(), name)
	if !ok {
		respondError(w, core.NewError(fmt.Sprintf("unknown slice %q", name), core.ErrorNotFound, nil))
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// DispatchResponse is the body returned by POST /dispatch.
type DispatchResponse struct {
	State      state.GlobalState `json:"state"`
	Error      string            `json:"error,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody))
	if err != nil {
		respondError(w, core.WrapError(err, core.ErrorClient, "read request body"))
		return
	}

	a, err := state.DecodeAction(body)
	if err != nil {
		respondError(w, err)
		return
	}

	ctx, report := store.WithReport(store.WithClient(r.Context(), clientID(r)))
	st := s.store.Dispatch(ctx, a)

	if report.RateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(report.RetryAfter))
		respondJSON(w, http.StatusTooManyRequests, DispatchResponse{
			State:      st,
			Error:      core.ErrRateLimited.Error(),
			RetryAfter: report.RetryAfter,
		})
		return
	}
	respondJSON(w, http.StatusOK, DispatchResponse{State: st})
}

// handleGetPreferences returns what is persisted, which may lag the live
// state when storage writes fail.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondJSON(w, http.StatusOK, prefs.FromState(s.store.State()))
		return
	}
	p, err := prefs.Load(r.Context(), s.storage)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type preferencesRequest struct {
	Theme      *string `json:"theme"`
	FilterMode *string `json:"filterMode"`
	SortOption *string `json:"sortOption"`
}

// handlePutPreferences applies a partial preference update through the
// store, so the persistence middleware writes it.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxActionBody)).Decode(&req); err != nil {
		respondError(w, core.WrapError(err, core.ErrorValidation, "invalid request body"))
		return
	}

	current := prefs.FromState(s.store.State())
	next := current
	if req.Theme != nil {
		theme, err := state.ParseTheme(*req.Theme)
		if err != nil {
			respondError(w, err)
			return
		}
		next.Theme = theme
	}
	if req.FilterMode != nil {
		mode, err := state.ParseFilterMode(*req.FilterMode)
		if err != nil {
			respondError(w, err)
			return
		}
		next.Shopping.FilterMode = mode
	}
	if req.SortOption != nil {
		opt, err := state.ParseSortOption(*req.SortOption)
		if err != nil {
			respondError(w, err)
			return
		}
		next.Shopping.SortOption = opt
	}

	ctx := store.WithClient(r.Context(), clientID(r))
	for _, a := range prefs.Actions(current, next) {
		s.store.Dispatch(ctx, a)
	}
	respondJSON(w, http.StatusOK, prefs.FromState(s.store.State()))
}

func (s *Server) handleRateLimitStats(w http.ResponseWriter, r *http.Request) {
	if s.rateLimits == nil {
		respondJSON(w, http.StatusOK, ratelimit.Stats{})
		return
	}
	respondJSON(w, http.StatusOK, s.rateLimits.Stats())
}

type measureSummary struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	AverageMs float64 `json:"average_ms"`
	MaxMs     float64 `json:"max_ms"`
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	out := []measureSummary{}
	if s.monitor != nil {
		for _, m := range s.monitor.Summary() {
			out = append(out, measureSummary{
				Name:      m.Name,
				Count:     m.Count,
				AverageMs: float64(m.Average().Microseconds()) / 1000,
				MaxMs:     float64(m.Max.Microseconds()) / 1000,
			})
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"measures": out})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		respondJSON(w, http.StatusOK, map[string]any{"tasks": []scheduler.TaskStatus{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": s.scheduler.Tasks()})
}
