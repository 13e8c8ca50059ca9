package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"drinktea/internal/domain"
	httpinfra "drinktea/internal/infra/http"
	"drinktea/internal/usecase/catalog"
)

const maxBodyBytes = 64 << 10

// Handler обслуживает публичное API каталога.
type Handler struct {
	svc *catalog.Service
	log zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(svc *catalog.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

// Register подключает маршруты /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/teas", h.listTeas)
		r.Get("/teas/{id}", h.getTea)
		r.Post("/events", h.postEvent)
		r.Post("/feedback", h.postFeedback)
		r.Post("/feedback/message", h.postMessage)
	})
}

type okResponse struct {
	OK    bool `json:"ok"`
	Dedup bool `json:"dedup,omitempty"`
}

type eventRequest struct {
	AnonUserID string `json:"anon_user_id"`
	TeaID      *int64 `json:"tea_id"`
	Type       string `json:"type"`
}

type feedbackRequest struct {
	AnonUserID string `json:"anon_user_id"`
	TeaID      *int64 `json:"tea_id"`
	Action     string `json:"action"`
}

type messageRequest struct {
	AnonUserID string  `json:"anon_user_id"`
	Message    string  `json:"message"`
	Contact    *string `json:"contact"`
	TeaID      *int64  `json:"tea_id"`
}

func (h *Handler) listTeas(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := catalog.NewListQuery()
	var err error
	if raw := params.Get("page"); raw != "" {
		if q.Page, err = strconv.Atoi(raw); err != nil {
			h.writeError(w, r, domain.ErrBadPagination)
			return
		}
	}
	if raw := params.Get("page_size"); raw != "" {
		if q.PageSize, err = strconv.Atoi(raw); err != nil {
			h.writeError(w, r, domain.ErrBadPagination)
			return
		}
	}
	q.Category = params.Get("category")
	q.AnonUserID = params.Get("anon_user_id")
	q.ExcludeIDs = params.Get("exclude_ids")
	q.TeaIDs = params.Get("tea_ids")

	resp, err := h.svc.ListTeas(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) getTea(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeBadRequest, "invalid tea id")
		return
	}
	tea, err := h.svc.GetTea(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, tea)
}

func (h *Handler) postEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TeaID == nil {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeBadRequest, "tea_id is required")
		return
	}
	in := catalog.EventInput{AnonUserID: req.AnonUserID, TeaID: *req.TeaID, Type: req.Type}
	if err := h.svc.RecordEvent(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) postFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TeaID == nil {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeBadRequest, "tea_id is required")
		return
	}
	in := catalog.FeedbackInput{AnonUserID: req.AnonUserID, TeaID: *req.TeaID, Action: req.Action}
	dedup, err := h.svc.RecordFeedback(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, okResponse{OK: true, Dedup: dedup})
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg := domain.MessageFeedback{AnonUserID: req.AnonUserID, Message: req.Message, Contact: req.Contact, TeaID: req.TeaID}
	if err := h.svc.RecordMessage(r.Context(), msg); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

var badRequestErrors = []error{
	domain.ErrBadPagination,
	domain.ErrInvalidCategory,
	domain.ErrInvalidDecision,
	domain.ErrInvalidEventType,
	domain.ErrEmptyMessage,
	domain.ErrEmptyAnonUserID,
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrTeaNotFound) {
		httpinfra.WriteError(w, http.StatusNotFound, httpinfra.CodeNotFound, domain.ErrTeaNotFound.Error())
		return
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeBadRequest, target.Error())
			return
		}
	}
	h.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", httpinfra.RequestID(r)).Msg("api: внутренняя ошибка")
	httpinfra.WriteError(w, http.StatusInternalServerError, httpinfra.CodeInternal, "internal error")
}
