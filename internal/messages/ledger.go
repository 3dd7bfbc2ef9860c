// Package messages implements the per-user message ledger: posting, replying,
// hiding and paging through messages ordered by their sequence number.
package messages

import (
	"context"

	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
)

// Ledger reads and writes users' messages through transactions on the store.
type Ledger struct {
	store            registrystore.Store
	strictPageTotals bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStrictPageTotals makes out-of-range pages report the real totalPages
// instead of 0.
func WithStrictPageTotals(strict bool) Option {
	return func(l *Ledger) { l.strictPageTotals = strict }
}

// NewLedger creates a Ledger over store.
func NewLedger(store registrystore.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PostInput is a new message addressed to the owner UID.
type PostInput struct {
	UID     string
	Message string
	// Author is nil for anonymous messages.
	Author *model.Author
}

// Post appends a message to the owner's ledger. The message takes the owner's
// current messageCount (1 when unset) as its messageNo and the counter is
// advanced in the same transaction.
func (l *Ledger) Post(ctx context.Context, in PostInput) (*model.Message, error) {
	var posted model.Message
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		user, err := requireUser(ctx, tx, in.UID)
		if err != nil {
			return err
		}
		messageNo := int64(1)
		if user.MessageCount != nil {
			messageNo = *user.MessageCount
		}
		msg := model.Message{
			OwnerUID:  in.UID,
			Message:   in.Message,
			MessageNo: messageNo,
			CreateAt:  tx.Now(),
			Author:    in.Author,
		}
		if err := tx.InsertMessage(ctx, &msg); err != nil {
			return err
		}
		if err := tx.SetMessageCount(ctx, in.UID, messageNo+1); err != nil {
			return err
		}
		posted = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	if security.MessagesPostedTotal != nil {
		security.MessagesPostedTotal.Inc()
	}
	return &posted, nil
}

// Reply attaches the owner's reply to a message. A message accepts one reply.
func (l *Ledger) Reply(ctx context.Context, uid, messageID, reply string) error {
	return l.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		msg, err := requireMessage(ctx, tx, uid, messageID)
		if err != nil {
			return err
		}
		if msg.Reply != nil {
			return &registrystore.ConflictError{
				Message: "already replied",
				Code:    registrystore.ConflictCodeAlreadyReplied,
				Details: map[string]interface{}{"messageId": messageID},
			}
		}
		return tx.SetReply(ctx, uid, messageID, reply, tx.Now())
	})
}

// Deny sets or clears the hidden flag on a message and returns the updated
// message. The returned view is not redacted.
func (l *Ledger) Deny(ctx context.Context, uid, messageID string, deny bool) (*model.MessageView, error) {
	var view model.MessageView
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		msg, err := requireMessage(ctx, tx, uid, messageID)
		if err != nil {
			return err
		}
		if err := tx.SetDeny(ctx, uid, messageID, deny); err != nil {
			return err
		}
		msg.Deny = &deny
		view = msg.View(false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Get returns one message, redacted when denied.
func (l *Ledger) Get(ctx context.Context, uid, messageID string) (*model.MessageView, error) {
	var view model.MessageView
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		msg, err := requireMessage(ctx, tx, uid, messageID)
		if err != nil {
			return err
		}
		view = msg.View(true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func requireUser(ctx context.Context, tx registrystore.Tx, uid string) (*model.User, error) {
	user, err := tx.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &registrystore.NotFoundError{Resource: "user", ID: uid}
	}
	return user, nil
}

func requireMessage(ctx context.Context, tx registrystore.Tx, uid, messageID string) (*model.Message, error) {
	if _, err := requireUser(ctx, tx, uid); err != nil {
		return nil, err
	}
	msg, err := tx.GetMessage(ctx, uid, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return msg, nil
}
