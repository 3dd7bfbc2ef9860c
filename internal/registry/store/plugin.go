package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/askbox/internal/model"
)

// Store is the transactional document store shared by the member registry
// and the message ledger.
type Store interface {
	// RunTransaction runs fn atomically. Reads made through tx observe a
	// consistent snapshot and conflicting writers are detected; the store
	// may invoke fn more than once when it retries a conflicting transaction,
	// so fn must not have side effects outside tx.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// FindHandle is a non-transactional point read of the handle index.
	// Returns nil, nil when the handle is not registered.
	FindHandle(ctx context.Context, screenName string) (*model.Handle, error)

	Close(ctx context.Context) error
}

// Tx is the set of document operations available inside a transaction.
// Lookups return nil, nil when the document is absent.
type Tx interface {
	// Now is the commit timestamp used for createAt and replyAt.
	Now() time.Time

	GetUser(ctx context.Context, uid string) (*model.User, error)
	CreateUser(ctx context.Context, user model.User) error
	// CreateHandle fails with *ConflictError when screenName is already bound.
	CreateHandle(ctx context.Context, handle model.Handle) error
	SetMessageCount(ctx context.Context, uid string, count int64) error

	GetMessage(ctx context.Context, uid string, messageID string) (*model.Message, error)
	// InsertMessage stores msg, assigning msg.ID when it is empty.
	InsertMessage(ctx context.Context, msg *model.Message) error
	SetReply(ctx context.Context, uid string, messageID string, reply string, at time.Time) error
	SetDeny(ctx context.Context, uid string, messageID string, deny bool) error
	// ListMessages returns up to limit messages of uid with messageNo <= startAt,
	// highest messageNo first.
	ListMessages(ctx context.Context, uid string, startAt int64, limit int) ([]model.Message, error)
}

// Loader creates a Store from config.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
