package memo

import (
	"fmt"
	"strings"
	"time"
)

// FieldError is one rejected field in a create or update request.
type FieldError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationErr aggregates field errors for a rejected request.
type ValidationErr struct {
	Items []FieldError
}

func (e ValidationErr) Error() string {
	if len(e.Items) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Items[0].Path, e.Items[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(e.Items))
}

// UpdateFields is the allow-listed content patch. Only the fields here can
// ever be written through Update; status, audit columns, attachments, and
// the version counter are set exclusively by their own handlers.
type UpdateFields struct {
	Title         *string    `json:"title,omitempty"`
	Body          *string    `json:"body,omitempty"`
	Department    *string    `json:"department,omitempty"`
	Category      *Category  `json:"category,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	DateOfIssue   *time.Time `json:"dateOfIssue,omitempty"`
	SignatureText *string    `json:"signatureText,omitempty"`
	RecipientIDs  *[]string  `json:"recipientIds,omitempty"`
}

type Validator struct {
	Config Config
}

func (v Validator) ValidateCreate(fields CreateFields) []FieldError {
	errs := make([]FieldError, 0)
	if strings.TrimSpace(fields.Title) == "" {
		errs = append(errs, errItem("MEMO-REQ-001", "title", "title is required"))
	}
	if len(fields.Title) > v.Config.MaxTitleLen {
		errs = append(errs, errItem("MEMO-LIMIT-001", "title", fmt.Sprintf("title too long (max %d)", v.Config.MaxTitleLen)))
	}
	if strings.TrimSpace(fields.Body) == "" {
		errs = append(errs, errItem("MEMO-REQ-002", "body", "body is required"))
	}
	if len(fields.Body) > v.Config.MaxBodyLen {
		errs = append(errs, errItem("MEMO-LIMIT-002", "body", fmt.Sprintf("body too long (max %d)", v.Config.MaxBodyLen)))
	}
	if strings.TrimSpace(fields.CreatedBy) == "" {
		errs = append(errs, errItem("MEMO-REQ-003", "createdBy", "author id is required"))
	}
	if fields.Category != "" && !validCategory(fields.Category) {
		errs = append(errs, errItem("MEMO-CODE-001", "category", "unknown category"))
	}
	if fields.Priority != "" && !validPriority(fields.Priority) {
		errs = append(errs, errItem("MEMO-CODE-002", "priority", "unknown priority"))
	}
	if len(fields.Tags) > v.Config.MaxTags {
		errs = append(errs, errItem("MEMO-LIMIT-003", "tags", fmt.Sprintf("too many tags (max %d)", v.Config.MaxTags)))
	}
	if len(fields.RecipientIDs) > v.Config.MaxRecipients {
		errs = append(errs, errItem("MEMO-LIMIT-004", "recipientIds", fmt.Sprintf("too many recipients (max %d)", v.Config.MaxRecipients)))
	}
	return errs
}

func (v Validator) ValidateUpdate(fields UpdateFields) []FieldError {
	errs := make([]FieldError, 0)
	if fields.Title != nil {
		if strings.TrimSpace(*fields.Title) == "" {
			errs = append(errs, errItem("MEMO-REQ-001", "title", "title cannot be cleared"))
		}
		if len(*fields.Title) > v.Config.MaxTitleLen {
			errs = append(errs, errItem("MEMO-LIMIT-001", "title", fmt.Sprintf("title too long (max %d)", v.Config.MaxTitleLen)))
		}
	}
	if fields.Body != nil {
		if strings.TrimSpace(*fields.Body) == "" {
			errs = append(errs, errItem("MEMO-REQ-002", "body", "body cannot be cleared"))
		}
		if len(*fields.Body) > v.Config.MaxBodyLen {
			errs = append(errs, errItem("MEMO-LIMIT-002", "body", fmt.Sprintf("body too long (max %d)", v.Config.MaxBodyLen)))
		}
	}
	if fields.Category != nil && !validCategory(*fields.Category) {
		errs = append(errs, errItem("MEMO-CODE-001", "category", "unknown category"))
	}
	if fields.Priority != nil && !validPriority(*fields.Priority) {
		errs = append(errs, errItem("MEMO-CODE-002", "priority", "unknown priority"))
	}
	if fields.Tags != nil && len(*fields.Tags) > v.Config.MaxTags {
		errs = append(errs, errItem("MEMO-LIMIT-003", "tags", fmt.Sprintf("too many tags (max %d)", v.Config.MaxTags)))
	}
	if fields.RecipientIDs != nil && len(*fields.RecipientIDs) > v.Config.MaxRecipients {
		errs = append(errs, errItem("MEMO-LIMIT-004", "recipientIds", fmt.Sprintf("too many recipients (max %d)", v.Config.MaxRecipients)))
	}
	return errs
}

// ApplyUpdate merges the patch into the memo, touching permitted content
// fields only. Recipient resolution is the engine's job and happens after.
func ApplyUpdate(m *Memo, fields UpdateFields) {
	if fields.Title != nil {
		m.Title = *fields.Title
	}
	if fields.Body != nil {
		m.Body = *fields.Body
	}
	if fields.Department != nil {
		m.Department = *fields.Department
	}
	if fields.Category != nil {
		m.Category = *fields.Category
	}
	if fields.Priority != nil {
		m.Priority = *fields.Priority
	}
	if fields.Tags != nil {
		m.Tags = *fields.Tags
	}
	if fields.DateOfIssue != nil {
		m.DateOfIssue = fields.DateOfIssue
	}
	if fields.SignatureText != nil {
		m.SignatureText = *fields.SignatureText
	}
}

func validCategory(c Category) bool {
	switch c {
	case CategoryGeneral, CategoryInstructional, CategoryInformational:
		return true
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityConfidential:
		return true
	}
	return false
}

func errItem(code, path, message string) FieldError {
	return FieldError{Code: code, Path: path, Message: message}
}
