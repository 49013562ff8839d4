// Package trigger turns push-event webhook deliveries into engine
// invocations. Delivery is at-least-once; the engine's singleflight
// collapse and open-PR reuse make redeliveries harmless.
package trigger

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/stagecraft/stagecraft/internal/engine"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/logging"
	"github.com/stagecraft/stagecraft/internal/stage"
)

// pushEvent is the subset of a push delivery the handler needs.
type pushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Handler serves POST /webhook and GET /healthz.
type Handler struct {
	engine *engine.Engine
	log    *logging.Logger
	// process runs one trigger; swapped in tests.
	process func(trig engine.Trigger)
}

// NewHandler builds a webhook handler driving the engine. Processing
// happens off the request goroutine so deliveries are acknowledged
// quickly; outcomes land in the log and on the event bus.
func NewHandler(eng *engine.Engine, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NopLogger()
	}
	h := &Handler{engine: eng, log: log.WithComponent("webhook")}
	h.process = h.run
	return h
}

// Mux returns the handler's routes.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", h.handlePush)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	var ev pushEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "malformed push event", http.StatusBadRequest)
		return
	}
	repo, err := idea.ParseRepository(ev.Repository.FullName)
	if err != nil {
		http.Error(w, "malformed repository address", http.StatusBadRequest)
		return
	}
	if ev.Ref == "" {
		http.Error(w, "missing ref", http.StatusBadRequest)
		return
	}

	go h.process(engine.Trigger{Repo: repo, BranchRef: ev.Ref})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) run(trig engine.Trigger) {
	// Pushes to branches outside the stage set (docs, feature work) are
	// expected traffic, not failures.
	if _, err := stage.ParseBranch(trig.BranchRef); err != nil {
		h.log.Debug("ignoring non-stage branch", "ref", trig.BranchRef)
		return
	}

	out, err := h.engine.HandleBranchUpdate(context.Background(), trig)
	if err != nil {
		h.log.Warn("trigger processing failed",
			"repo", trig.Repo.Address(), "ref", trig.BranchRef, "error", err.Error())
		return
	}
	h.log.Info("trigger processed",
		"repo", trig.Repo.Address(), "ref", trig.BranchRef,
		"complete", out.Verdict.Complete, "pr", out.PRNumber,
		"merged", out.Merged, "blocked", out.Blocked)
}
