package recipient

import (
	"context"

	"github.com/amishk599/gigradar/internal/model"
)

var _ model.RecipientStore = (*StaticStore)(nil)

// StaticStore serves a fixed recipient list, typically from config.
type StaticStore struct {
	recipients []model.Recipient
}

// NewStaticStore copies recipients into a store.
func NewStaticStore(recipients []model.Recipient) *StaticStore {
	return &StaticStore{recipients: append([]model.Recipient(nil), recipients...)}
}

func (s *StaticStore) ForSource(_ context.Context, source model.Source) ([]model.Recipient, error) {
	var out []model.Recipient
	for _, r := range s.recipients {
		if r.Wants(source) {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns every configured recipient.
func (s *StaticStore) All() []model.Recipient {
	return append([]model.Recipient(nil), s.recipients...)
}
