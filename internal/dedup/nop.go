package dedup

import (
	"context"
	"time"
)

// NopStore is a no-op store used by one-shot checks. It never marks keys,
// so every posting appears new on each poll.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Exists(context.Context, string) (bool, error)       { return false, nil }
func (s *NopStore) Mark(context.Context, string, time.Duration) error { return nil }
