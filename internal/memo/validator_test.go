package memo

import (
	"strings"
	"testing"
	"time"
)

func TestValidateCreate_RequiredFields(t *testing.T) {
	v := Validator{Config: testConfig()}
	fields := sampleFields()
	fields.Title = "  "
	fields.Body = ""
	fields.CreatedBy = ""
	errs := v.ValidateCreate(fields)
	if len(errs) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", errs)
	}
}

func TestValidateCreate_UnknownCodes(t *testing.T) {
	v := Validator{Config: testConfig()}
	fields := sampleFields()
	fields.Category = Category("GOSSIP")
	fields.Priority = Priority("WHENEVER")
	errs := v.ValidateCreate(fields)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", errs)
	}
}

func TestValidateCreate_Limits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTags = 2
	cfg.MaxTitleLen = 10
	v := Validator{Config: cfg}
	fields := sampleFields()
	fields.Title = strings.Repeat("x", 11)
	fields.Tags = []string{"a", "b", "c"}
	errs := v.ValidateCreate(fields)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", errs)
	}
}

func TestApplyUpdate_AllowListOnly(t *testing.T) {
	m := fixtureMemo("memo-1")
	m.Status = StatusPendingLEO
	m.Version = 4
	reviewed := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	m.DeskHeadReviewedAt = &reviewed

	title := "Judul Baru"
	body := "<p>Isi baru.</p>"
	category := CategoryGeneral
	ApplyUpdate(&m, UpdateFields{Title: &title, Body: &body, Category: &category})

	if m.Title != title || m.Body != body || m.Category != category {
		t.Fatalf("content fields not applied: %+v", m)
	}
	// The patch must never reach status, audit, or version fields.
	if m.Status != StatusPendingLEO || m.Version != 4 || m.DeskHeadReviewedAt == nil {
		t.Fatalf("protected fields touched by update: %+v", m)
	}
}

func TestApplyUpdate_NilFieldsUntouched(t *testing.T) {
	m := fixtureMemo("memo-1")
	before := m.Title
	ApplyUpdate(&m, UpdateFields{})
	if m.Title != before {
		t.Fatalf("nil patch must not change fields")
	}
}

func TestValidateUpdate_RejectsClearedTitle(t *testing.T) {
	v := Validator{Config: testConfig()}
	empty := " "
	errs := v.ValidateUpdate(UpdateFields{Title: &empty})
	if len(errs) != 1 {
		t.Fatalf("expected 1 field error, got %+v", errs)
	}
}
