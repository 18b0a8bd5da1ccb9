package memo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/yourorg/officeadmin/apps/api/internal/attachment"
)

// Service wires config, the workflow engine, and the document generator into
// HTTP handlers.
type Service struct {
	cfg     Config
	engine  *Engine
	docs    DocumentGenerator
	logger  *slog.Logger
	limiter *RateLimiter
}

func NewService(cfg Config, engine *Engine, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		cfg:     cfg,
		engine:  engine,
		docs:    NewDocumentGenerator(cfg),
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitWindow),
	}
}

// Routes returns the memo API router.
func (s Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.CreateMemo)
	r.Get("/", s.ListMemos)
	r.Route("/{memoID}", func(r chi.Router) {
		r.Get("/", s.GetMemo)
		r.Patch("/", s.UpdateMemo)
		r.Delete("/", s.RemoveMemo)
		r.Post("/submit", s.SubmitToDeskHead)
		r.Post("/desk-head", s.DeskHeadAction)
		r.Post("/leo", s.LEOAction)
		r.Post("/resubmit", s.Resubmit)
		r.Post("/signatures", s.SignMemo)
		r.Get("/history", s.GetHistory)
		r.Get("/events", s.ListEvents)
		r.Get("/document", s.GetDocument)
		r.Get("/document/html", s.GetHTMLDocument)
		r.Post("/attachments", s.Attach)
		r.Delete("/attachments/{handleID}", s.Detach)
	})
	return r
}

type createRequest struct {
	Title         string              `json:"title"`
	Body          string              `json:"body"`
	Department    string              `json:"department"`
	Category      Category            `json:"category"`
	Priority      Priority            `json:"priority"`
	Tags          []string            `json:"tags"`
	DateOfIssue   *openapi_types.Date `json:"dateOfIssue"`
	SignatureText string              `json:"signatureText"`
	RecipientIDs  []string            `json:"recipientIds"`
}

type actionRequest struct {
	Action  Action `json:"action"`
	Comment string `json:"comment"`
}

type signRequest struct {
	Action   Action `json:"action"`
	Comments string `json:"comments"`
}

func (s Service) CreateMemo(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	log := CorrelationLogger(s.logger, corrID, actor)
	if !s.allow(w, corrID, actor) {
		return
	}

	var req createRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, corrID, badJSON(err))
		return
	}
	fields := CreateFields{
		Title:         req.Title,
		Body:          req.Body,
		Department:    req.Department,
		Category:      req.Category,
		Priority:      req.Priority,
		Tags:          req.Tags,
		DateOfIssue:   dateToTime(req.DateOfIssue),
		SignatureText: req.SignatureText,
		RecipientIDs:  req.RecipientIDs,
		CreatedBy:     actor,
	}
	m, err := s.engine.Create(r.Context(), fields)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusCreated, corrID, m)
	log.Info("memo created", "memoId", m.ID)
}

func (s Service) ListMemos(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	raw := r.URL.Query().Get("status")
	status, ok := ParseStatus(raw)
	if !ok {
		writeError(w, corrID, InvalidActionErr{Stage: "status filter", Action: raw})
		return
	}
	memos, err := s.engine.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]any{"memos": memos, "count": len(memos)})
}

func (s Service) GetMemo(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	m, err := s.engine.Get(r.Context(), chi.URLParam(r, "memoID"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
}

func (s Service) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	var fields UpdateFields
	if err := decodeBody(r.Body, &fields); err != nil {
		writeError(w, corrID, badJSON(err))
		return
	}
	m, err := s.engine.Update(r.Context(), chi.URLParam(r, "memoID"), fields)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
}

func (s Service) RemoveMemo(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	if err := s.engine.Remove(r.Context(), chi.URLParam(r, "memoID")); err != nil {
		writeError(w, corrID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s Service) SubmitToDeskHead(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	log := CorrelationLogger(s.logger, corrID, actor)
	if !s.allow(w, corrID, actor) {
		return
	}
	m, err := s.engine.SubmitToDeskHead(r.Context(), chi.URLParam(r, "memoID"), actor)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
	log.Info("memo submitted", "memoId", m.ID, "status", m.Status)
}

func (s Service) DeskHeadAction(w http.ResponseWriter, r *http.Request) {
	s.reviewerAction(w, r, s.engine.DeskHeadAction)
}

func (s Service) LEOAction(w http.ResponseWriter, r *http.Request) {
	s.reviewerAction(w, r, s.engine.LEOAction)
}

func (s Service) reviewerAction(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string, action Action, comment, actorID string) (Memo, error)) {
	corrID, actor := requestIdentity(r)
	log := CorrelationLogger(s.logger, corrID, actor)
	if !s.allow(w, corrID, actor) {
		return
	}
	var req actionRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, corrID, badJSON(err))
		return
	}
	m, err := apply(r.Context(), chi.URLParam(r, "memoID"), req.Action, req.Comment, actor)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
	log.Info("review action applied", "memoId", m.ID, "action", req.Action, "status", m.Status)
}

func (s Service) Resubmit(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	m, err := s.engine.Resubmit(r.Context(), chi.URLParam(r, "memoID"), actor)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
}

func (s Service) SignMemo(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	var req signRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, corrID, badJSON(err))
		return
	}
	m, err := s.engine.Sign(r.Context(), chi.URLParam(r, "memoID"), actor, req.Action, req.Comments)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusCreated, corrID, m)
}

func (s Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	view, err := s.engine.History(r.Context(), chi.URLParam(r, "memoID"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, view)
}

func (s Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	events, err := s.engine.Events(r.Context(), chi.URLParam(r, "memoID"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]any{"events": events, "count": len(events)})
}

func (s Service) GetDocument(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	m, err := s.engine.Get(r.Context(), chi.URLParam(r, "memoID"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	payload, err := s.docs.Generate(m)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, payload)
}

func (s Service) GetHTMLDocument(w http.ResponseWriter, r *http.Request) {
	corrID, _ := requestIdentity(r)
	m, err := s.engine.Get(r.Context(), chi.URLParam(r, "memoID"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	html, err := s.docs.RenderHTML(m)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (s Service) Attach(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, corrID, badJSON(err))
		return
	}
	var files []attachment.File
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			f, err := hdr.Open()
			if err != nil {
				writeError(w, corrID, err)
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, corrID, err)
				return
			}
			files = append(files, attachment.File{
				Name:        hdr.Filename,
				ContentType: hdr.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	m, err := s.engine.Attach(r.Context(), chi.URLParam(r, "memoID"), files)
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
}

func (s Service) Detach(w http.ResponseWriter, r *http.Request) {
	corrID, actor := requestIdentity(r)
	if !s.allow(w, corrID, actor) {
		return
	}
	m, err := s.engine.Detach(r.Context(), chi.URLParam(r, "memoID"), []string{chi.URLParam(r, "handleID")})
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, m)
}

func (s Service) allow(w http.ResponseWriter, corrID, actor string) bool {
	if ok, retryAfter := s.limiter.Allow(actor); !ok {
		seconds := int(retryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		writeJSON(w, http.StatusTooManyRequests, corrID, errorBody{
			Code: "RATE_LIMITED", Message: "too many requests", CorrID: corrID, Retryable: true,
		})
		return false
	}
	return true
}

type errorBody struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	CorrID    string       `json:"corrId,omitempty"`
	Retryable bool         `json:"retryable"`
	Errors    []FieldError `json:"errors,omitempty"`
}

type badJSONErr struct{ err error }

func (e badJSONErr) Error() string { return "invalid JSON: " + e.err.Error() }

func badJSON(err error) error { return badJSONErr{err: err} }

// writeError maps the engine's error taxonomy onto HTTP status codes and
// JSON bodies.
func writeError(w http.ResponseWriter, corrID string, err error) {
	var (
		invalidTransition InvalidTransitionErr
		invalidAction     InvalidActionErr
		invalidState      InvalidStateErr
		conflict          ConflictErr
		validation        ValidationErr
		reviewer          ReviewerResolutionErr
		badReq            badJSONErr
	)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, corrID, errorBody{Code: "NOT_FOUND", Message: "memo not found", CorrID: corrID})
	case errors.As(err, &reviewer):
		writeJSON(w, http.StatusNotFound, corrID, errorBody{Code: "REVIEWER_NOT_FOUND", Message: reviewer.Error(), CorrID: corrID})
	case errors.As(err, &invalidTransition):
		writeJSON(w, http.StatusConflict, corrID, errorBody{Code: "INVALID_TRANSITION", Message: invalidTransition.Error(), CorrID: corrID})
	case errors.As(err, &invalidState):
		writeJSON(w, http.StatusConflict, corrID, errorBody{Code: "INVALID_STATE", Message: invalidState.Error(), CorrID: corrID})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, corrID, errorBody{Code: "CONFLICT", Message: conflict.Error(), CorrID: corrID, Retryable: true})
	case errors.As(err, &invalidAction):
		writeJSON(w, http.StatusBadRequest, corrID, errorBody{Code: "INVALID_ACTION", Message: invalidAction.Error(), CorrID: corrID})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, corrID, errorBody{Code: "VALIDATION_ERROR", Message: "request validation failed", CorrID: corrID, Errors: validation.Items})
	case errors.As(err, &badReq):
		writeJSON(w, http.StatusBadRequest, corrID, errorBody{Code: "BAD_JSON", Message: badReq.Error(), CorrID: corrID})
	default:
		writeJSON(w, http.StatusInternalServerError, corrID, errorBody{Code: "INTERNAL_ERROR", Message: err.Error(), CorrID: corrID, Retryable: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(body io.ReadCloser, v any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

func requestIdentity(r *http.Request) (corrID, actor string) {
	return r.Header.Get("X-Correlation-Id"), r.Header.Get("X-Actor-Id")
}

func dateToTime(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
