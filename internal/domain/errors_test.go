package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "order not found",
			err:  NewOrderNotFound(7, ""),
			want: true,
		},
		{
			name: "wrapped client not found",
			err:  fmt.Errorf("lookup: %w", NewClientNotFound(ID(3), "Incorrect id")),
			want: true,
		},
		{
			name: "conflict",
			err:  NewConflict(""),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotFoundError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *NotFoundError
		want string
	}{
		{name: "default order message", err: NewOrderNotFound(5, ""), want: "ID: 5) No order"},
		{name: "custom message", err: NewOrderNotFound(5, "No such order"), want: "No such order"},
		{name: "client without id", err: NewClientNotFound(nil, ""), want: "ID: ?) No client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflict("")
	if err.Error() != DefaultConflictMessage {
		t.Fatalf("expected default message, got %q", err.Error())
	}
	if !IsConflict(err) {
		t.Fatal("expected IsConflict to be true")
	}

	wrapped := &ConflictError{Message: "Name used", Err: ErrNameTaken}
	if !errors.Is(wrapped, ErrNameTaken) {
		t.Fatal("expected conflict to unwrap to ErrNameTaken")
	}

	var target *ConflictError
	if !errors.As(fmt.Errorf("ctx: %w", wrapped), &target) || target.Message != "Name used" {
		t.Fatalf("errors.As failed: %+v", target)
	}
}

func TestParseBackendKind(t *testing.T) {
	for _, raw := range []string{"memory", "sql", "orm"} {
		if _, err := ParseBackendKind(raw); err != nil {
			t.Errorf("ParseBackendKind(%q) unexpected error: %v", raw, err)
		}
	}
	if _, err := ParseBackendKind("mongo"); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}
