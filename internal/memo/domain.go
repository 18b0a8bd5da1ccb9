package memo

import (
	"time"

	"github.com/yourorg/officeadmin/apps/api/internal/attachment"
)

// Status is the workflow state of a memo. A memo starts in DRAFT and moves
// through the two review stages; APPROVED and REJECTED are terminal.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingDeskHead   Status = "PENDING_DESK_HEAD"
	StatusPendingLEO        Status = "PENDING_LEO"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusReturnedToCreator Status = "RETURNED_TO_CREATOR"
)

// AllStatuses lists every valid workflow state, for queue views and validation.
func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusPendingDeskHead,
		StatusPendingLEO,
		StatusApproved,
		StatusRejected,
		StatusReturnedToCreator,
	}
}

// IsTerminal reports whether no further transition can leave the state.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action is a reviewer decision token.
type Action string

const (
	ActionSubmitToLEO     Action = "SUBMIT_TO_LEO"
	ActionReturnToCreator Action = "RETURN_TO_CREATOR"
	ActionReject          Action = "REJECT"
	ActionApprove         Action = "APPROVE"
)

// Category classifies the memo content.
type Category string

const (
	CategoryGeneral       Category = "GENERAL"
	CategoryInstructional Category = "INSTRUCTIONAL"
	CategoryInformational Category = "INFORMATIONAL"
)

// Priority marks handling urgency and sensitivity.
type Priority string

const (
	PriorityNormal       Priority = "NORMAL"
	PriorityUrgent       Priority = "URGENT"
	PriorityConfidential Priority = "CONFIDENTIAL"
)

// Recipient is a resolved distribution-list entry.
type Recipient struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// ReviewerRef records who acted at a review stage.
type ReviewerRef struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Memo is the workflow subject. Content fields may be edited only while the
// memo is in DRAFT; status, the per-stage audit fields, and Version are set
// exclusively by transition handlers.
type Memo struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Department    string     `json:"department"`
	Category      Category   `json:"category"`
	Priority      Priority   `json:"priority"`
	Tags          []string   `json:"tags,omitempty"`
	DateOfIssue   *time.Time `json:"dateOfIssue,omitempty"`
	SignatureText string     `json:"signatureText,omitempty"`
	CreatedBy     string     `json:"createdBy"`

	Recipients  []Recipient         `json:"recipients,omitempty"`
	Attachments []attachment.Handle `json:"attachments,omitempty"`

	Status Status `json:"status"`

	SubmittedToDeskHeadAt *time.Time   `json:"submittedToDeskHeadAt,omitempty"`
	DeskHeadReviewer      *ReviewerRef `json:"deskHeadReviewer,omitempty"`
	DeskHeadComment       string       `json:"deskHeadComment,omitempty"`
	DeskHeadReviewedAt    *time.Time   `json:"deskHeadReviewedAt,omitempty"`
	SubmittedToLEOAt      *time.Time   `json:"submittedToLeoAt,omitempty"`
	LEOReviewer           *ReviewerRef `json:"leoReviewer,omitempty"`
	LEOComment            string       `json:"leoComment,omitempty"`
	LEOReviewedAt         *time.Time   `json:"leoReviewedAt,omitempty"`
	ApprovedAt            *time.Time   `json:"approvedAt,omitempty"`

	Signatures []Signature `json:"signatures,omitempty"`

	// Version is bumped on every persisted write; stale writers get Conflict.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Signature is a legacy single-signer approval record. Append-only: once
// created it is never mutated, and the transition logic does not consult it.
type Signature struct {
	SignatureID string    `json:"signatureId"`
	SignerID    string    `json:"signerId"`
	SignerName  string    `json:"signerName"`
	Action      Action    `json:"action"`
	Comments    string    `json:"comments,omitempty"`
	SignedAt    time.Time `json:"signedAt"`
}

// TransitionEvent is one entry of the append-only workflow log, hash-chained
// per memo for tamper detection.
type TransitionEvent struct {
	EventID  string    `json:"eventId"`
	MemoID   string    `json:"memoId"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Comment  string    `json:"comment,omitempty"`
	Ts       time.Time `json:"timestamp"`
	Hash     string    `json:"hash"`
	PrevHash string    `json:"prevHash"`
}

// ReviewBlock is one stage of the workflow history view, nil-valued fields
// meaning the stage has not been reached yet.
type ReviewBlock struct {
	Reviewer   *ReviewerRef `json:"reviewer,omitempty"`
	Comment    string       `json:"comment,omitempty"`
	ReviewedAt *time.Time   `json:"reviewedAt,omitempty"`
}

// HistoryView is the read-only workflow timeline for one memo.
type HistoryView struct {
	MemoID                string            `json:"memoId"`
	Status                Status            `json:"status"`
	CreatedAt             time.Time         `json:"createdAt"`
	SubmittedToDeskHeadAt *time.Time        `json:"submittedToDeskHeadAt,omitempty"`
	DeskHead              *ReviewBlock      `json:"deskHead,omitempty"`
	SubmittedToLEOAt      *time.Time        `json:"submittedToLeoAt,omitempty"`
	LEO                   *ReviewBlock      `json:"leo,omitempty"`
	ApprovedAt            *time.Time        `json:"approvedAt,omitempty"`
	Events                []TransitionEvent `json:"events,omitempty"`
}
