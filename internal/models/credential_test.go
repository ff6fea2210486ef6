package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredentialIsStaleAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		stale  bool
	}{
		{"expires in an hour", now.Add(time.Hour), false},
		{"expires just outside the margin", now.Add(StalenessMargin + time.Second), false},
		{"expires exactly at the margin", now.Add(StalenessMargin), true},
		{"expires inside the margin", now.Add(time.Minute), true},
		{"already expired", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := Credential{Scope: ScopeAnalytics, Token: "t", Expiry: tt.expiry}
			assert.Equal(t, tt.stale, cred.IsStaleAt(now))
		})
	}
}

func TestErrorKindOf(t *testing.T) {
	assert.Equal(t, ErrAuthCancelled, KindOf(NewError(ErrAuthCancelled, "cancelled")))
	assert.Equal(t, ErrBridgeFailure, KindOf(assert.AnError))

	wrapped := NewErrorWithDetail(ErrAmbiguousSuccess, "raw output", "no marker")
	assert.Equal(t, ErrAmbiguousSuccess, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "raw output")
	assert.True(t, IsKind(wrapped, ErrAmbiguousSuccess))
	assert.False(t, IsKind(wrapped, ErrBridgeFailure))
}
