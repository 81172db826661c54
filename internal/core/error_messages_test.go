package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"conflict", &ConflictError{Kind: KindContact, Field: FieldEmail, Identity: "Jane Doe <jane@x.com>"}, "DUP001"},
		{"wrapped conflict", fmt.Errorf("create: %w", &ConflictError{Kind: KindAccount, Field: FieldName}), "DUP001"},
		{"already a contact", &ConflictError{Kind: KindContact, AlreadyContact: true}, "DUP002"},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), "REC001"},
		{"converted lead", ErrLeadConverted, "REC002"},
		{"nothing to reconcile", ErrNothingToReconcile, "REC003"},
		{"empty input", ErrEmptyInput, "FILE005"},
		{"too many imports", ErrTooManyImports, "IMP001"},
		{"cancelled", context.Canceled, "IMP002"},
		{"missing column", ValidationError{Field: "last_name", Message: "missing required column"}, "VAL004"},
		{"required value", ValidationError{Field: "last_name", Message: "required field is empty"}, "VAL003"},
		{"other validation", ValidationError{Field: "account_id", Message: "referenced account does not exist"}, "VAL000"},
		{"store error", &StoreError{Op: "create", Err: errors.New("disk on fire")}, "DB008"},
		{"store connection refused", &StoreError{Op: "find", Err: errors.New("dial tcp: connection refused")}, "DB004"},
		{"pattern only", errors.New("file too large: 200MB"), "FILE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
		{"case insensitive matching", errors.New("RATE LIMIT exceeded"), "RATE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_ConflictDetail(t *testing.T) {
	id := uuid.New()
	msg := MapError(&ConflictError{Kind: KindContact, Field: FieldEmail, Identity: "Jane Doe <jane@x.com>", ExistingID: id})
	if msg.Detail != "Jane Doe <jane@x.com>" {
		t.Errorf("Detail = %q, want the existing record's identity", msg.Detail)
	}
	if msg.Message != "A contact with this email already exists" {
		t.Errorf("Message = %q", msg.Message)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrNotFound)
	want := "Record not found (Code: REC001). Verify the record ID and tenant"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(errors.New("opaque")) {
		t.Error("opaque error should not be user facing")
	}
	if !IsUserFacing(ErrEmptyInput) {
		t.Error("ErrEmptyInput should be user facing")
	}
}
