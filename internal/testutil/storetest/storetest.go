// Package storetest holds the behavior every store plugin must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the Tx contract. Subtests use distinct uids so
// a single migrated store can serve all of them.
func Run(t *testing.T, ctx context.Context, store registrystore.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, ctx, store) })
	t.Run("handles", func(t *testing.T) { testHandles(t, ctx, store) })
	t.Run("messages", func(t *testing.T) { testMessages(t, ctx, store) })
	t.Run("list", func(t *testing.T) { testList(t, ctx, store) })
	t.Run("concurrent counter", func(t *testing.T) { testConcurrentCounter(t, ctx, store) })
}

func createUser(t *testing.T, ctx context.Context, store registrystore.Store, uid string) {
	t.Helper()
	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		return tx.CreateUser(ctx, model.User{UID: uid, Email: uid + "@example.com"})
	})
	require.NoError(t, err)
}

func getUser(t *testing.T, ctx context.Context, store registrystore.Store, uid string) *model.User {
	t.Helper()
	var user *model.User
	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, uid)
		return err
	})
	require.NoError(t, err)
	return user
}

func testUsers(t *testing.T, ctx context.Context, store registrystore.Store) {
	assert.Nil(t, getUser(t, ctx, store, "users-ghost"))

	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		return tx.CreateUser(ctx, model.User{UID: "users-1", Email: "one@example.com", DisplayName: "One", PhotoURL: "p"})
	})
	require.NoError(t, err)

	user := getUser(t, ctx, store, "users-1")
	require.NotNil(t, user)
	assert.Equal(t, "one@example.com", user.Email)
	assert.Equal(t, "One", user.DisplayName)
	assert.Equal(t, "p", user.PhotoURL)
	assert.Nil(t, user.MessageCount)

	err = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		return tx.SetMessageCount(ctx, "users-1", 7)
	})
	require.NoError(t, err)
	user = getUser(t, ctx, store, "users-1")
	require.NotNil(t, user.MessageCount)
	assert.Equal(t, int64(7), *user.MessageCount)

	err = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		return tx.SetMessageCount(ctx, "users-ghost", 2)
	})
	var notFound *registrystore.NotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func testHandles(t *testing.T, ctx context.Context, store registrystore.Store) {
	user := model.User{UID: "handles-1", Email: "handles1@example.com", DisplayName: "H"}
	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateHandle(ctx, model.HandleFor("handles1", user))
	})
	require.NoError(t, err)

	h, err := store.FindHandle(ctx, "handles1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "handles-1", h.UID)
	assert.Equal(t, "H", h.DisplayName)

	h, err = store.FindHandle(ctx, "handles-nobody")
	require.NoError(t, err)
	assert.Nil(t, h)

	other := model.User{UID: "handles-2", Email: "handles1@elsewhere.com"}
	err = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		if err := tx.CreateUser(ctx, other); err != nil {
			return err
		}
		return tx.CreateHandle(ctx, model.HandleFor("handles1", other))
	})
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)

	// The failed transaction must not leave its user behind.
	assert.Nil(t, getUser(t, ctx, store, "handles-2"))
}

func testMessages(t *testing.T, ctx context.Context, store registrystore.Store) {
	createUser(t, ctx, store, "messages-1")

	var id string
	var createAt time.Time
	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		createAt = tx.Now()
		msg := &model.Message{
			OwnerUID:  "messages-1",
			Message:   "hello",
			MessageNo: 1,
			CreateAt:  createAt,
			Author:    &model.Author{DisplayName: "Bob", PhotoURL: "b.png"},
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		id = msg.ID
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	get := func(uid, id string) *model.Message {
		t.Helper()
		var msg *model.Message
		err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
			var err error
			msg, err = tx.GetMessage(ctx, uid, id)
			return err
		})
		require.NoError(t, err)
		return msg
	}

	msg := get("messages-1", id)
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, int64(1), msg.MessageNo)
	assert.WithinDuration(t, createAt, msg.CreateAt, time.Millisecond)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "Bob", msg.Author.DisplayName)
	assert.Nil(t, msg.Reply)
	assert.False(t, msg.Denied())

	assert.Nil(t, get("messages-other", id), "messages are scoped to their owner")
	assert.Nil(t, get("messages-1", "00000000-0000-0000-0000-000000000000"))
	assert.Nil(t, get("messages-1", "not-a-uuid"))

	replyAt := time.Now().UTC()
	err = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		if err := tx.SetReply(ctx, "messages-1", id, "answer", replyAt); err != nil {
			return err
		}
		return tx.SetDeny(ctx, "messages-1", id, true)
	})
	require.NoError(t, err)

	msg = get("messages-1", id)
	require.NotNil(t, msg.Reply)
	assert.Equal(t, "answer", *msg.Reply)
	require.NotNil(t, msg.ReplyAt)
	assert.WithinDuration(t, replyAt, *msg.ReplyAt, time.Millisecond)
	assert.True(t, msg.Denied())

	err = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		return tx.SetDeny(ctx, "messages-1", "00000000-0000-0000-0000-000000000000", true)
	})
	var notFound *registrystore.NotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func testList(t *testing.T, ctx context.Context, store registrystore.Store) {
	createUser(t, ctx, store, "list-1")
	createUser(t, ctx, store, "list-2")

	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		for no := int64(1); no <= 5; no++ {
			for _, uid := range []string{"list-1", "list-2"} {
				msg := &model.Message{OwnerUID: uid, Message: fmt.Sprintf("%s-%d", uid, no), MessageNo: no, CreateAt: tx.Now()}
				if err := tx.InsertMessage(ctx, msg); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)

	list := func(startAt int64, limit int) []int64 {
		t.Helper()
		var msgs []model.Message
		err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
			var err error
			msgs, err = tx.ListMessages(ctx, "list-1", startAt, limit)
			return err
		})
		require.NoError(t, err)
		nos := make([]int64, len(msgs))
		for i, m := range msgs {
			assert.Equal(t, "list-1", m.OwnerUID)
			nos[i] = m.MessageNo
		}
		return nos
	}

	assert.Equal(t, []int64{5, 4}, list(5, 2))
	assert.Equal(t, []int64{3, 2, 1}, list(3, 10))
	assert.Equal(t, []int64{1}, list(1, 2))
	assert.Empty(t, list(0, 2))
}

// testConcurrentCounter posts from several goroutines and expects the store
// to serialize the read-increment-write of messageCount.
func testConcurrentCounter(t *testing.T, ctx context.Context, store registrystore.Store) {
	createUser(t, ctx, store, "counter-1")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
				user, err := tx.GetUser(ctx, "counter-1")
				if err != nil {
					return err
				}
				no := int64(1)
				if user.MessageCount != nil {
					no = *user.MessageCount
				}
				if err := tx.InsertMessage(ctx, &model.Message{OwnerUID: "counter-1", Message: "m", MessageNo: no, CreateAt: tx.Now()}); err != nil {
					return err
				}
				return tx.SetMessageCount(ctx, "counter-1", no+1)
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	user := getUser(t, ctx, store, "counter-1")
	require.NotNil(t, user.MessageCount)
	assert.Equal(t, int64(writers+1), *user.MessageCount)
}
