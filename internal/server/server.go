// Package server exposes the onboarding flows over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"github.com/emojirades/onboarding/internal/onboarding"
)

// DefaultFallbackURL receives every request outside the onboarding routes.
const DefaultFallbackURL = "https://emojirades.io"

// Onboarder runs the onboarding flows.
type Onboarder interface {
	Initiate(ctx context.Context) (*onboarding.Result, error)
	Onboard(ctx context.Context, code, state string) (*onboarding.Result, error)
}

var _ Onboarder = (*onboarding.Service)(nil)

type handler struct {
	log         *zap.Logger
	svc         Onboarder
	fallbackURL string
}

// NewHandler returns the public router:
//
//	/initiate  starts a handshake (any method)
//	/onboard   completes one (any method)
//	*          redirects to fallbackURL
func NewHandler(log *zap.Logger, svc Onboarder, fallbackURL string) http.Handler {
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackURL
	}

	h := &handler{
		log:         log,
		svc:         svc,
		fallbackURL: fallbackURL,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RequestLogger(zapLogFormatter{log: log}),
		h.recoverer,
	)

	r.HandleFunc("/initiate", h.handleInitiate)
	r.HandleFunc("/onboard", h.handleOnboard)
	r.NotFound(h.handleFallback)
	r.MethodNotAllowed(h.handleFallback)

	return r
}

func (h *handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Initiate(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.respond(w, r, res)
}

func (h *handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		h.respond(w, r, onboarding.MissingParameters())
		return
	}

	res, err := h.svc.Onboard(r.Context(), code, state)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.respond(w, r, res)
}

func (h *handler) handleFallback(w http.ResponseWriter, r *http.Request) {
	redirect(w, h.fallbackURL)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, res *onboarding.Result) {
	if res.Location != "" {
		redirect(w, res.Location)
		return
	}

	h.log.Debug("Onboarding result",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("status", res.StatusCode))
	writeMessage(w, res.StatusCode, res.Message)
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("Request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(http.StatusFound)
}

// MessageResponse is the JSON body of every non-redirect response.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(MessageResponse{Message: message})
}
