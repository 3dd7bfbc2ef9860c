// Package gormstore implements the document store on top of GORM. The
// postgres and sqlite plugins share it and differ only in dialect options.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options tune the store for a SQL dialect.
type Options struct {
	// Name labels retry metrics and log lines.
	Name string
	// LockRows issues SELECT ... FOR UPDATE for reads inside transactions.
	LockRows bool
	// MaxRetries bounds how often a conflicting transaction is re-run.
	MaxRetries int
	// Retryable reports whether a failed transaction may be re-run.
	Retryable func(error) bool
}

// Store implements registrystore.Store over a *gorm.DB.
type Store struct {
	db   *gorm.DB
	opts Options
}

// New wraps db.
func New(db *gorm.DB, opts Options) *Store {
	return &Store{db: db, opts: opts}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx registrystore.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(ctx, &gormTx{db: db, now: now(), lock: s.opts.LockRows})
		})
		if err == nil || registrystore.IsDomainError(err) {
			return err
		}
		if attempt >= s.opts.MaxRetries || s.opts.Retryable == nil || !s.opts.Retryable(err) {
			return err
		}
		if security.TxRetriesTotal != nil {
			security.TxRetriesTotal.WithLabelValues(s.opts.Name).Inc()
		}
		log.Debug("Retrying transaction", "store", s.opts.Name, "attempt", attempt+1, "err", err)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Store) FindHandle(ctx context.Context, screenName string) (*model.Handle, error) {
	var rows []screenNameRow
	if err := s.db.WithContext(ctx).Where("screen_name = ?", screenName).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find handle: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

func (s *Store) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type gormTx struct {
	db   *gorm.DB
	now  time.Time
	lock bool
}

func (t *gormTx) Now() time.Time { return t.now }

func (t *gormTx) query() *gorm.DB {
	if t.lock {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

func (t *gormTx) GetUser(_ context.Context, uid string) (*model.User, error) {
	var rows []memberRow
	if err := t.query().Where("uid = ?", uid).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

func (t *gormTx) CreateUser(_ context.Context, user model.User) error {
	row := memberRow{
		UID:          user.UID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PhotoURL:     user.PhotoURL,
		MessageCount: user.MessageCount,
		CreatedAt:    t.now,
	}
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (t *gormTx) CreateHandle(_ context.Context, handle model.Handle) error {
	var existing []screenNameRow
	if err := t.query().Where("screen_name = ?", handle.ScreenName).Limit(1).Find(&existing).Error; err != nil {
		return fmt.Errorf("get handle: %w", err)
	}
	if len(existing) > 0 {
		if existing[0].UID == handle.UID {
			return nil
		}
		return &registrystore.ConflictError{
			Message: "handle already taken",
			Code:    registrystore.ConflictCodeHandleTaken,
			Details: map[string]interface{}{"screenName": handle.ScreenName},
		}
	}
	row := screenNameRow{
		ScreenName:  handle.ScreenName,
		UID:         handle.UID,
		Email:       handle.Email,
		DisplayName: handle.DisplayName,
		PhotoURL:    handle.PhotoURL,
		CreatedAt:   t.now,
	}
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create handle: %w", err)
	}
	return nil
}

func (t *gormTx) SetMessageCount(_ context.Context, uid string, count int64) error {
	res := t.db.Model(&memberRow{}).Where("uid = ?", uid).Update("message_count", count)
	if res.Error != nil {
		return fmt.Errorf("set message count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &registrystore.NotFoundError{Resource: "user", ID: uid}
	}
	return nil
}

func (t *gormTx) GetMessage(_ context.Context, uid string, messageID string) (*model.Message, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return nil, nil
	}
	var rows []messageRow
	if err := t.query().Where("uid = ? AND id = ?", uid, messageID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	m := rows[0].toModel()
	return &m, nil
}

func (t *gormTx) InsertMessage(_ context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	row := fromMessage(msg)
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *gormTx) SetReply(_ context.Context, uid string, messageID string, reply string, at time.Time) error {
	res := t.db.Model(&messageRow{}).
		Where("uid = ? AND id = ?", uid, messageID).
		Updates(map[string]interface{}{"reply": reply, "reply_at": at})
	if res.Error != nil {
		return fmt.Errorf("set reply: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return nil
}

func (t *gormTx) SetDeny(_ context.Context, uid string, messageID string, deny bool) error {
	res := t.db.Model(&messageRow{}).
		Where("uid = ? AND id = ?", uid, messageID).
		Update("deny", deny)
	if res.Error != nil {
		return fmt.Errorf("set deny: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return nil
}

func (t *gormTx) ListMessages(_ context.Context, uid string, startAt int64, limit int) ([]model.Message, error) {
	var rows []messageRow
	err := t.db.Where("uid = ? AND message_no <= ?", uid, startAt).
		Order("message_no DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]model.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

var _ registrystore.Store = (*Store)(nil)
