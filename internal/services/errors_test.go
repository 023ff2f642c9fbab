package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"framecast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "contextstore", "put", "write failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"contextstore", "put", "write failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToFatal(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("expected fatal marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "scene", "store", "bad", nil), services.KindValidation},
		{"not found", services.Wrap(services.ErrNotFound, "media", "retrieve", "missing", nil), services.KindNotFound},
		{"quality gate", fmt.Errorf("build: %w", services.ErrQualityGate), services.KindQualityGate},
		{"transient", services.Wrap(services.ErrTransient, "", "", "", errors.New("io")), services.KindTransient},
		{"configuration", services.ErrConfiguration, services.KindConfiguration},
		{"unknown", errors.New("surprise"), services.KindFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRetryableOnlyForTransient(t *testing.T) {
	if !services.Retryable(services.Wrap(services.ErrTransient, "x", "y", "z", nil)) {
		t.Fatal("expected transient error to be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrNotFound, "x", "y", "z", nil)) {
		t.Fatal("not found must not be retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil must not be retryable")
	}
}
