package messages_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/chirino/askbox/internal/members"
	"github.com/chirino/askbox/internal/messages"
	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/testutil/teststore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T, opts ...messages.Option) (*messages.Ledger, registrystore.Store, context.Context) {
	t.Helper()
	store, ctx := teststore.Open(t)
	reg := members.NewRegistry(store, nil, 0)
	_, err := reg.Register(ctx, members.RegisterInput{UID: "u1", Email: "u1@gmail.com"})
	require.NoError(t, err)
	return messages.NewLedger(store, opts...), store, ctx
}

func messageCount(t *testing.T, ctx context.Context, store registrystore.Store, uid string) *int64 {
	t.Helper()
	var count *int64
	err := store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		u, err := tx.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		count = u.MessageCount
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestPost_AssignsSequenceAndAdvancesCounter(t *testing.T) {
	ledger, store, ctx := setupLedger(t)
	require.Nil(t, messageCount(t, ctx, store, "u1"))

	first, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.MessageNo)
	assert.NotEmpty(t, first.ID)
	assert.Nil(t, first.Author)

	second, err := ledger.Post(ctx, messages.PostInput{
		UID:     "u1",
		Message: "signed",
		Author:  &model.Author{DisplayName: "Bob", PhotoURL: "https://example.org/bob.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.MessageNo)

	count := messageCount(t, ctx, store, "u1")
	require.NotNil(t, count)
	assert.Equal(t, int64(3), *count)

	got, err := ledger.Get(ctx, "u1", second.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, "Bob", got.Author.DisplayName)
	assert.Equal(t, "https://example.org/bob.png", got.Author.PhotoURL)
	assert.Equal(t, model.FormatTime(second.CreateAt), got.CreateAt)
}

func TestPost_UnknownUser(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	_, err := ledger.Post(ctx, messages.PostInput{UID: "ghost", Message: "hi"})
	var nf *registrystore.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Resource)
}

func TestPost_ConcurrentAppendsGetDistinctContiguousNumbers(t *testing.T) {
	ledger, store, ctx := setupLedger(t)

	const n = 20
	var wg sync.WaitGroup
	nos := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: fmt.Sprintf("m%d", i)})
			errs[i] = err
			if err == nil {
				nos[i] = msg.MessageNo
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })
	for i, no := range nos {
		assert.Equal(t, int64(i+1), no)
	}
	count := messageCount(t, ctx, store, "u1")
	assert.Equal(t, int64(n+1), *count)
}

func TestReply_OnlyOnce(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	msg, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "q"})
	require.NoError(t, err)

	require.NoError(t, ledger.Reply(ctx, "u1", msg.ID, "a"))

	got, err := ledger.Get(ctx, "u1", msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "a", *got.Reply)
	require.NotNil(t, got.ReplyAt)

	err = ledger.Reply(ctx, "u1", msg.ID, "again")
	var conflict *registrystore.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "already replied", conflict.Message)

	got, err = ledger.Get(ctx, "u1", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", *got.Reply)
}

func TestReply_UnknownMessage(t *testing.T) {
	ledger, _, ctx := setupLedger(t)

	var nf *registrystore.NotFoundError
	err := ledger.Reply(ctx, "u1", "00000000-0000-0000-0000-000000000000", "a")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "message", nf.Resource)

	err = ledger.Reply(ctx, "u1", "not-a-uuid", "a")
	require.ErrorAs(t, err, &nf)

	err = ledger.Reply(ctx, "ghost", "not-a-uuid", "a")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Resource)
}

func TestDeny_RedactsReadsUntilCleared(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	msg, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "rude"})
	require.NoError(t, err)

	updated, err := ledger.Deny(ctx, "u1", msg.ID, true)
	require.NoError(t, err)
	require.NotNil(t, updated.Deny)
	assert.True(t, *updated.Deny)
	assert.Equal(t, "rude", updated.Message)

	got, err := ledger.Get(ctx, "u1", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeniedPlaceholder, got.Message)

	page, err := ledger.ListPage(ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, model.DeniedPlaceholder, page.Content[0].Message)

	_, err = ledger.Deny(ctx, "u1", msg.ID, false)
	require.NoError(t, err)

	got, err = ledger.Get(ctx, "u1", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "rude", got.Message)
	require.NotNil(t, got.Deny)
	assert.False(t, *got.Deny)
}

func TestDeny_Idempotent(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	msg, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "x"})
	require.NoError(t, err)

	_, err = ledger.Deny(ctx, "u1", msg.ID, true)
	require.NoError(t, err)
	_, err = ledger.Deny(ctx, "u1", msg.ID, true)
	require.NoError(t, err)
}

func TestGet_UnknownMessage(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	_, err := ledger.Get(ctx, "u1", "00000000-0000-0000-0000-000000000000")
	var nf *registrystore.NotFoundError
	require.ErrorAs(t, err, &nf)
}
