package fsm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/croftlabs/certbill/internal/adapter/fsm"
	"github.com/croftlabs/certbill/internal/domain"
)

func TestApplyAllDeclaredTransitions(t *testing.T) {
	v := fsm.New()
	for _, tr := range domain.Transitions {
		got, err := v.Apply(context.Background(), tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%s, %s) error = %v", tr.Src, tr.Event, err)
			continue
		}
		if got != tr.Dst {
			t.Errorf("Apply(%s, %s) = %s, want %s", tr.Src, tr.Event, got, tr.Dst)
		}
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		current domain.AccountStatus
		event   domain.Event
	}{
		{domain.StatusActive, domain.EventActivate},
		{domain.StatusSuspended, domain.EventActivate},
		{domain.StatusTerminated, domain.EventActivate},
		{domain.StatusPendingStart, domain.EventReactivate},
		{domain.StatusPendingStart, domain.EventDeactivate},
		{domain.StatusSuspended, domain.EventDeactivate},
		{domain.StatusInactive, domain.EventSuspend},
		{domain.StatusPendingStart, domain.EventTerminate},
		{domain.StatusTerminated, domain.EventTerminate},
		{domain.StatusActive, domain.EventUnsuspend},
	}

	v := fsm.New()
	for _, tt := range tests {
		_, err := v.Apply(context.Background(), tt.current, tt.event)
		var transErr *domain.TransitionError
		if !errors.As(err, &transErr) {
			t.Errorf("Apply(%s, %s) = %v, want *domain.TransitionError", tt.current, tt.event, err)
			continue
		}
		if transErr.Current != tt.current || transErr.Event != tt.event {
			t.Errorf("TransitionError = %+v, want current %s, event %s", transErr, tt.current, tt.event)
		}
	}
}

func TestApplyTerminatedIsTerminal(t *testing.T) {
	events := []domain.Event{
		domain.EventActivate, domain.EventReactivate, domain.EventDeactivate,
		domain.EventSuspend, domain.EventUnsuspend, domain.EventTerminate,
	}
	v := fsm.New()
	for _, event := range events {
		if _, err := v.Apply(context.Background(), domain.StatusTerminated, event); err == nil {
			t.Errorf("Apply(terminated, %s) = nil, want error", event)
		}
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	v := fsm.New()
	if _, err := v.Apply(context.Background(), domain.StatusActive, "explode"); err == nil {
		t.Error("Apply(active, explode) = nil, want error")
	}
}
