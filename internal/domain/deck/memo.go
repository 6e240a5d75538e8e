package deck

import (
	"context"
	"fmt"

	apperrors "github.com/yanqian/brainybinder/pkg/errors"
)

// resolve returns the value of a cache slot, computing it when empty. Concurrent
// callers for the same empty slot share one computation. A failed computation leaves
// the slot empty. The bool reports whether the value came straight from the store.
func (s *Service) resolve(ctx context.Context, key SlotKey, compute func(context.Context) (string, error)) (string, bool, error) {
	if value, ok, err := s.slots.Get(ctx, key); err != nil {
		s.logger.Warn("summary store read failed", "slot", key.String(), "error", err)
	} else if ok {
		return value, true, nil
	}

	ch := s.flights.DoChan(key.String(), func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("summary computation panicked", "slot", key.String(), "panic", r)
				result, err = nil, apperrors.Wrap(apperrors.CodeUpstreamFailure, "summarizer call failed", fmt.Errorf("panic: %v", r))
			}
		}()

		// The flight outlives any single caller.
		flightCtx := context.WithoutCancel(ctx)
		if s.cfg.UpstreamTimeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, s.cfg.UpstreamTimeout)
			defer cancel()
		}

		// A flight that started after another one filled the slot must not recompute.
		if value, ok, err := s.slots.Get(flightCtx, key); err == nil && ok {
			return value, nil
		}

		value, err := compute(flightCtx)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeUpstreamFailure, "summarizer call failed", err)
		}
		stored, err := s.slots.PutIfAbsent(flightCtx, key, value)
		if err != nil {
			s.logger.Warn("summary store write failed", "slot", key.String(), "error", err)
			return value, nil
		}
		return stored, nil
	})

	select {
	case <-ctx.Done():
		return "", false, apperrors.Wrap(apperrors.CodeUpstreamFailure, "summary request cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		return res.Val.(string), false, nil
	}
}
