package memory

import (
	"context"

	"github.com/anay-go/anay/pkg/core/types"
)

// Store persists conversation history across restarts.
type Store interface {
	Append(ctx context.Context, sessionKey string, msg types.Message) error
	Load(ctx context.Context, sessionKey string, limit int) ([]types.Message, error)
	Clear(ctx context.Context, sessionKey string) error
	Close() error
}

// NopStore keeps nothing.
type NopStore struct{}

func (NopStore) Append(context.Context, string, types.Message) error { return nil }

func (NopStore) Load(context.Context, string, int) ([]types.Message, error) { return nil, nil }

func (NopStore) Clear(context.Context, string) error { return nil }

func (NopStore) Close() error { return nil }
