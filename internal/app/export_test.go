package app

import "time"

// Clock overrides for deterministic refund-window and billing-period tests.

func SetSagaClock(s *ProvisioningSaga, fn func() time.Time) { s.now = fn }

func SetRefundClock(e *RefundEngine, fn func() time.Time) { e.now = fn }

func SetLifecycleClock(l *AccountLifecycle, fn func() time.Time) { l.now = fn }
