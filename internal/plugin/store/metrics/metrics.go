package metrics

import (
	"context"
	"time"

	"github.com/chirino/askbox/internal/model"
	"github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
)

// Wrap returns a Store that records StoreLatency for every operation,
// including each operation issued inside a transaction.
func Wrap(inner store.Store) store.Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.Store
}

func observe(op string, start time.Time) {
	if security.StoreLatency == nil {
		return
	}
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	defer observe("transaction", time.Now())
	return m.inner.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &metricsTx{inner: tx})
	})
}

func (m *metricsStore) FindHandle(ctx context.Context, screenName string) (*model.Handle, error) {
	defer observe("find_handle", time.Now())
	return m.inner.FindHandle(ctx, screenName)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}

type metricsTx struct {
	inner store.Tx
}

func (t *metricsTx) Now() time.Time { return t.inner.Now() }

func (t *metricsTx) GetUser(ctx context.Context, uid string) (*model.User, error) {
	defer observe("get_user", time.Now())
	return t.inner.GetUser(ctx, uid)
}

func (t *metricsTx) CreateUser(ctx context.Context, user model.User) error {
	defer observe("create_user", time.Now())
	return t.inner.CreateUser(ctx, user)
}

func (t *metricsTx) CreateHandle(ctx context.Context, handle model.Handle) error {
	defer observe("create_handle", time.Now())
	return t.inner.CreateHandle(ctx, handle)
}

func (t *metricsTx) SetMessageCount(ctx context.Context, uid string, count int64) error {
	defer observe("set_message_count", time.Now())
	return t.inner.SetMessageCount(ctx, uid, count)
}

func (t *metricsTx) GetMessage(ctx context.Context, uid string, messageID string) (*model.Message, error) {
	defer observe("get_message", time.Now())
	return t.inner.GetMessage(ctx, uid, messageID)
}

func (t *metricsTx) InsertMessage(ctx context.Context, msg *model.Message) error {
	defer observe("insert_message", time.Now())
	return t.inner.InsertMessage(ctx, msg)
}

func (t *metricsTx) SetReply(ctx context.Context, uid string, messageID string, reply string, at time.Time) error {
	defer observe("set_reply", time.Now())
	return t.inner.SetReply(ctx, uid, messageID, reply, at)
}

func (t *metricsTx) SetDeny(ctx context.Context, uid string, messageID string, deny bool) error {
	defer observe("set_deny", time.Now())
	return t.inner.SetDeny(ctx, uid, messageID, deny)
}

func (t *metricsTx) ListMessages(ctx context.Context, uid string, startAt int64, limit int) ([]model.Message, error) {
	defer observe("list_messages", time.Now())
	return t.inner.ListMessages(ctx, uid, startAt, limit)
}

var (
	_ store.Store = (*metricsStore)(nil)
	_ store.Tx    = (*metricsTx)(nil)
)
