package memo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/officeadmin/apps/api/internal/attachment"
	"github.com/yourorg/officeadmin/apps/api/internal/directory"
)

// transitions is the complete legal state machine. Transitions are total
// functions of (current status, action): any pair missing here fails, never
// silently no-ops.
var transitions = map[Status]map[Action]Status{
	StatusPendingDeskHead: {
		ActionSubmitToLEO:     StatusPendingLEO,
		ActionReturnToCreator: StatusReturnedToCreator,
		ActionReject:          StatusRejected,
	},
	StatusPendingLEO: {
		ActionApprove:         StatusApproved,
		ActionReturnToCreator: StatusReturnedToCreator,
		ActionReject:          StatusRejected,
	},
}

var deskHeadActions = map[Action]bool{
	ActionSubmitToLEO:     true,
	ActionReturnToCreator: true,
	ActionReject:          true,
}

var leoActions = map[Action]bool{
	ActionApprove:         true,
	ActionReturnToCreator: true,
	ActionReject:          true,
}

// Engine owns the memo state machine: transition validation, reviewer
// stamping, audit timestamps, and the append-only event log. All writes go
// through the repository's version check so a stale read-modify-write is
// rejected with Conflict instead of overwriting another reviewer's trail.
type Engine struct {
	cfg    Config
	repo   Repository
	users  directory.Resolver
	files  attachment.Store
	events EventRecorder
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(cfg Config, repo Repository, users directory.Resolver, files attachment.Store, events EventRecorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		repo:   repo,
		users:  users,
		files:  files,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateFields carries author-supplied content for a new memo.
type CreateFields struct {
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Department    string     `json:"department"`
	Category      Category   `json:"category"`
	Priority      Priority   `json:"priority"`
	Tags          []string   `json:"tags,omitempty"`
	DateOfIssue   *time.Time `json:"dateOfIssue,omitempty"`
	SignatureText string     `json:"signatureText,omitempty"`
	RecipientIDs  []string   `json:"recipientIds,omitempty"`
	CreatedBy     string     `json:"createdBy"`
}

// Create validates the fields, resolves the distribution list best-effort,
// and persists a new memo in DRAFT. Recipient ids that fail to resolve are
// dropped; a partial distribution list is acceptable.
func (e *Engine) Create(ctx context.Context, fields CreateFields) (Memo, error) {
	v := Validator{Config: e.cfg}
	if errs := v.ValidateCreate(fields); len(errs) > 0 {
		return Memo{}, ValidationErr{Items: errs}
	}

	now := e.now()
	m := Memo{
		ID:            uuid.New().String(),
		Title:         fields.Title,
		Body:          fields.Body,
		Department:    fields.Department,
		Category:      fields.Category,
		Priority:      fields.Priority,
		Tags:          fields.Tags,
		DateOfIssue:   fields.DateOfIssue,
		SignatureText: fields.SignatureText,
		CreatedBy:     fields.CreatedBy,
		Recipients:    e.resolveRecipients(ctx, fields.RecipientIDs),
		Status:        StatusDraft,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.repo.Insert(ctx, m); err != nil {
		return Memo{}, err
	}
	e.appendEvent(ctx, m, fields.CreatedBy, "CREATE", "", StatusDraft, "")
	e.logger.Info("memo created", "memoId", m.ID, "department", m.Department, "recipients", len(m.Recipients))
	return m, nil
}

// SubmitToDeskHead moves a DRAFT memo into the first review stage.
func (e *Engine) SubmitToDeskHead(ctx context.Context, id, actorID string) (Memo, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusDraft {
		return Memo{}, InvalidTransitionErr{MemoID: id, From: m.Status, Action: "SUBMIT_TO_DESK_HEAD"}
	}
	now := e.now()
	prev := m.Status
	m.SubmittedToDeskHeadAt = &now
	m.Status = StatusPendingDeskHead
	m.UpdatedAt = now
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		return Memo{}, err
	}
	e.appendEvent(ctx, updated, actorID, "SUBMIT_TO_DESK_HEAD", prev, updated.Status, "")
	e.logger.Info("memo submitted to desk head", "memoId", id, "actor", actorID)
	return updated, nil
}

// DeskHeadAction applies a first-stage reviewer decision. The acting
// reviewer must resolve in the directory; an unresolvable reviewer fails the
// action outright.
func (e *Engine) DeskHeadAction(ctx context.Context, id string, action Action, comment, actorID string) (Memo, error) {
	if !deskHeadActions[action] {
		return Memo{}, InvalidActionErr{Stage: "desk-head", Action: string(action)}
	}
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusPendingDeskHead {
		return Memo{}, InvalidTransitionErr{MemoID: id, From: m.Status, Action: string(action)}
	}
	reviewer, err := e.resolveReviewer(ctx, actorID)
	if err != nil {
		return Memo{}, err
	}

	now := e.now()
	prev := m.Status
	target := transitions[StatusPendingDeskHead][action]
	m.DeskHeadReviewer = &reviewer
	m.DeskHeadComment = comment
	m.DeskHeadReviewedAt = &now
	if action == ActionSubmitToLEO {
		m.SubmittedToLEOAt = &now
	}
	m.Status = target
	m.UpdatedAt = now
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		return Memo{}, err
	}
	e.appendEvent(ctx, updated, actorID, string(action), prev, updated.Status, comment)
	e.logger.Info("desk head action applied", "memoId", id, "action", action, "status", updated.Status, "reviewer", actorID)
	return updated, nil
}

// LEOAction applies a final-stage reviewer decision, symmetric to
// DeskHeadAction and gated on PENDING_LEO.
func (e *Engine) LEOAction(ctx context.Context, id string, action Action, comment, actorID string) (Memo, error) {
	if !leoActions[action] {
		return Memo{}, InvalidActionErr{Stage: "leo", Action: string(action)}
	}
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusPendingLEO {
		return Memo{}, InvalidTransitionErr{MemoID: id, From: m.Status, Action: string(action)}
	}
	reviewer, err := e.resolveReviewer(ctx, actorID)
	if err != nil {
		return Memo{}, err
	}

	now := e.now()
	prev := m.Status
	target := transitions[StatusPendingLEO][action]
	m.LEOReviewer = &reviewer
	m.LEOComment = comment
	m.LEOReviewedAt = &now
	if action == ActionApprove {
		m.ApprovedAt = &now
	}
	m.Status = target
	m.UpdatedAt = now
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		return Memo{}, err
	}
	e.appendEvent(ctx, updated, actorID, string(action), prev, updated.Status, comment)
	e.logger.Info("leo action applied", "memoId", id, "action", action, "status", updated.Status, "reviewer", actorID)
	return updated, nil
}

// Resubmit takes a returned memo back to DRAFT so the author can revise and
// submit again. The stage audit columns are cleared; the full review history
// stays in the event log.
func (e *Engine) Resubmit(ctx context.Context, id, actorID string) (Memo, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusReturnedToCreator {
		return Memo{}, InvalidTransitionErr{MemoID: id, From: m.Status, Action: "RESUBMIT"}
	}
	now := e.now()
	prev := m.Status
	m.SubmittedToDeskHeadAt = nil
	m.DeskHeadReviewer = nil
	m.DeskHeadComment = ""
	m.DeskHeadReviewedAt = nil
	m.SubmittedToLEOAt = nil
	m.LEOReviewer = nil
	m.LEOComment = ""
	m.LEOReviewedAt = nil
	m.ApprovedAt = nil
	m.Status = StatusDraft
	m.UpdatedAt = now
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		return Memo{}, err
	}
	e.appendEvent(ctx, updated, actorID, "RESUBMIT", prev, updated.Status, "")
	e.logger.Info("memo resubmitted to draft", "memoId", id, "actor", actorID)
	return updated, nil
}

// Update applies an allow-listed content patch. Permitted only in DRAFT.
func (e *Engine) Update(ctx context.Context, id string, fields UpdateFields) (Memo, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusDraft {
		return Memo{}, InvalidStateErr{MemoID: id, Status: m.Status, Operation: "update"}
	}
	v := Validator{Config: e.cfg}
	if errs := v.ValidateUpdate(fields); len(errs) > 0 {
		return Memo{}, ValidationErr{Items: errs}
	}
	ApplyUpdate(&m, fields)
	if fields.RecipientIDs != nil {
		m.Recipients = e.resolveRecipients(ctx, *fields.RecipientIDs)
	}
	m.UpdatedAt = e.now()
	return e.repo.Update(ctx, m, m.Version)
}

// Remove deletes a DRAFT memo and cleans up its attachments.
func (e *Engine) Remove(ctx context.Context, id string) error {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != StatusDraft {
		return InvalidStateErr{MemoID: id, Status: m.Status, Operation: "remove"}
	}
	if len(m.Attachments) > 0 {
		ids := make([]string, 0, len(m.Attachments))
		for _, h := range m.Attachments {
			ids = append(ids, h.ID)
		}
		if err := e.files.Remove(ctx, ids); err != nil {
			return fmt.Errorf("remove attachments: %w", err)
		}
	}
	if err := e.repo.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("memo removed", "memoId", id)
	return nil
}

// Attach uploads files to the attachment store and records the handles on
// the memo. DRAFT only.
func (e *Engine) Attach(ctx context.Context, id string, files []attachment.File) (Memo, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusDraft {
		return Memo{}, InvalidStateErr{MemoID: id, Status: m.Status, Operation: "attach"}
	}
	if len(m.Attachments)+len(files) > e.cfg.MaxAttachments {
		return Memo{}, ValidationErr{Items: []FieldError{{
			Code: "MEMO-ATT-001", Path: "attachments",
			Message: fmt.Sprintf("too many attachments (max %d)", e.cfg.MaxAttachments),
		}}}
	}
	handles, err := e.files.Store(ctx, files, "memo:"+id)
	if err != nil {
		return Memo{}, fmt.Errorf("store attachments: %w", err)
	}
	m.Attachments = append(m.Attachments, handles...)
	m.UpdatedAt = e.now()
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		// The write lost; drop the stored bytes so nothing is orphaned.
		ids := make([]string, 0, len(handles))
		for _, h := range handles {
			ids = append(ids, h.ID)
		}
		if rmErr := e.files.Remove(ctx, ids); rmErr != nil {
			e.logger.Warn("orphaned attachment cleanup failed", "memoId", id, "error", rmErr)
		}
		return Memo{}, err
	}
	return updated, nil
}

// Detach removes attachment handles from the memo and the store. DRAFT only.
func (e *Engine) Detach(ctx context.Context, id string, handleIDs []string) (Memo, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	if m.Status != StatusDraft {
		return Memo{}, InvalidStateErr{MemoID: id, Status: m.Status, Operation: "detach"}
	}
	owned := map[string]bool{}
	for _, h := range m.Attachments {
		owned[h.ID] = true
	}
	for _, hid := range handleIDs {
		if !owned[hid] {
			return Memo{}, ValidationErr{Items: []FieldError{{
				Code: "MEMO-ATT-002", Path: "attachments",
				Message: fmt.Sprintf("handle %s does not belong to memo %s", hid, id),
			}}}
		}
	}
	removing := map[string]bool{}
	for _, hid := range handleIDs {
		removing[hid] = true
	}
	kept := m.Attachments[:0]
	for _, h := range m.Attachments {
		if !removing[h.ID] {
			kept = append(kept, h)
		}
	}
	m.Attachments = kept
	m.UpdatedAt = e.now()
	updated, err := e.repo.Update(ctx, m, m.Version)
	if err != nil {
		// The write lost; the handles stay on the memo, so the bytes must
		// stay in the store.
		return Memo{}, err
	}
	if err := e.files.Remove(ctx, handleIDs); err != nil {
		e.logger.Warn("detached attachment cleanup failed", "memoId", id, "error", err)
	}
	return updated, nil
}

// Sign appends a legacy single-signer approval record. Signatures are
// append-only audit artifacts and are not consulted by the transition logic.
func (e *Engine) Sign(ctx context.Context, id, signerID string, action Action, comments string) (Memo, error) {
	if action != ActionApprove && action != ActionReject {
		return Memo{}, InvalidActionErr{Stage: "signature", Action: string(action)}
	}
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return Memo{}, err
	}
	signer, err := e.resolveReviewer(ctx, signerID)
	if err != nil {
		return Memo{}, err
	}
	m.Signatures = append(m.Signatures, Signature{
		SignatureID: uuid.New().String(),
		SignerID:    signer.UserID,
		SignerName:  signer.Name,
		Action:      action,
		Comments:    comments,
		SignedAt:    e.now(),
	})
	m.UpdatedAt = e.now()
	return e.repo.Update(ctx, m, m.Version)
}

// Get returns a single memo.
func (e *Engine) Get(ctx context.Context, id string) (Memo, error) {
	return e.repo.Get(ctx, id)
}

// ListByStatus is the queue-view projection, e.g. memos pending desk head.
func (e *Engine) ListByStatus(ctx context.Context, status Status) ([]Memo, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, InvalidActionErr{Stage: "status filter", Action: string(status)}
	}
	return e.repo.ListByStatus(ctx, status, e.cfg.ListLimit)
}

// History assembles the read-only workflow timeline for a memo. Never
// mutates.
func (e *Engine) History(ctx context.Context, id string) (HistoryView, error) {
	m, err := e.repo.Get(ctx, id)
	if err != nil {
		return HistoryView{}, err
	}
	view := HistoryView{
		MemoID:                m.ID,
		Status:                m.Status,
		CreatedAt:             m.CreatedAt,
		SubmittedToDeskHeadAt: m.SubmittedToDeskHeadAt,
		SubmittedToLEOAt:      m.SubmittedToLEOAt,
		ApprovedAt:            m.ApprovedAt,
	}
	if m.DeskHeadReviewedAt != nil {
		view.DeskHead = &ReviewBlock{Reviewer: m.DeskHeadReviewer, Comment: m.DeskHeadComment, ReviewedAt: m.DeskHeadReviewedAt}
	}
	if m.LEOReviewedAt != nil {
		view.LEO = &ReviewBlock{Reviewer: m.LEOReviewer, Comment: m.LEOComment, ReviewedAt: m.LEOReviewedAt}
	}
	if e.events != nil {
		events, err := e.events.List(ctx, id)
		if err != nil {
			e.logger.Warn("event list failed", "memoId", id, "error", err)
		} else {
			view.Events = events
		}
	}
	return view, nil
}

// Events returns the append-only transition log for a memo.
func (e *Engine) Events(ctx context.Context, id string) ([]TransitionEvent, error) {
	if _, err := e.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if e.events == nil {
		return nil, nil
	}
	return e.events.List(ctx, id)
}

// ParseStatus maps a wire token to a Status.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (e *Engine) resolveReviewer(ctx context.Context, actorID string) (ReviewerRef, error) {
	profile, err := e.users.ResolveUser(ctx, actorID)
	if err != nil {
		return ReviewerRef{}, ReviewerResolutionErr{UserID: actorID, Err: err}
	}
	return ReviewerRef{UserID: profile.ID, Name: profile.Name}, nil
}

func (e *Engine) resolveRecipients(ctx context.Context, ids []string) []Recipient {
	recipients := make([]Recipient, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		profile, err := e.users.ResolveUser(ctx, id)
		if err != nil {
			if !errors.Is(err, directory.ErrNotFound) {
				e.logger.Warn("recipient lookup failed", "userId", id, "error", err)
			}
			continue
		}
		recipients = append(recipients, Recipient{UserID: profile.ID, Name: profile.Name, Email: profile.Email})
	}
	return recipients
}

func (e *Engine) appendEvent(ctx context.Context, m Memo, actor, action string, from, to Status, comment string) {
	if e.events == nil {
		return
	}
	ev := TransitionEvent{
		EventID: uuid.New().String(),
		MemoID:  m.ID,
		Actor:   actor,
		Action:  action,
		From:    from,
		To:      to,
		Comment: comment,
		Ts:      e.now(),
	}
	if _, err := ChainEvent(ctx, e.events, ev, e.cfg.EnableEventHash); err != nil {
		e.logger.Warn("event append failed", "memoId", m.ID, "action", action, "error", err)
	}
}
