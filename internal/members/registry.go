// Package members registers users and resolves their public handles.
package members

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/model"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	registrystore "github.com/chirino/askbox/internal/registry/store"
)

// RegisterInput carries the identity attributes supplied at sign-in.
type RegisterInput struct {
	UID         string
	Email       string
	DisplayName *string
	PhotoURL    *string
}

// Registry owns the members collection and the screen-name index.
type Registry struct {
	store    registrystore.Store
	cache    registrycache.HandleCache
	cacheTTL time.Duration
}

// NewRegistry creates a Registry. cache may be nil.
func NewRegistry(store registrystore.Store, cache registrycache.HandleCache, cacheTTL time.Duration) *Registry {
	return &Registry{store: store, cache: cache, cacheTTL: cacheTTL}
}

// HandleFromEmail derives the public handle from an email address: the part
// before the last '@', or the whole string when there is none.
func HandleFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Register creates the user and its handle index entry in one transaction.
// Registering an existing uid succeeds without modifying it; created reports
// whether anything was written.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (created bool, err error) {
	if strings.TrimSpace(in.UID) == "" {
		return false, &registrystore.ValidationError{Field: "uid", Message: "is required"}
	}
	handle := HandleFromEmail(in.Email)
	if handle == "" {
		return false, &registrystore.ValidationError{Field: "email", Message: "does not yield a handle"}
	}

	user := model.User{
		UID:         in.UID,
		Email:       in.Email,
		DisplayName: deref(in.DisplayName),
		PhotoURL:    deref(in.PhotoURL),
	}
	err = r.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		created = false
		existing, err := tx.GetUser(ctx, in.UID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := tx.CreateHandle(ctx, model.HandleFor(handle, user)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		log.Info("Registered member", "uid", in.UID, "screenName", handle)
		r.remember(ctx, model.HandleFor(handle, user))
	}
	return created, nil
}

// ResolveHandle looks up the user behind screenName. Returns nil, nil when
// no such handle is registered.
func (r *Registry) ResolveHandle(ctx context.Context, screenName string) (*model.Handle, error) {
	if r.cacheAvailable() {
		h, err := r.cache.Get(ctx, screenName)
		if err != nil {
			log.Warn("Handle cache read failed", "screenName", screenName, "err", err)
		} else if h != nil {
			return h, nil
		}
	}

	h, err := r.store.FindHandle(ctx, screenName)
	if err != nil {
		return nil, err
	}
	if h != nil {
		r.remember(ctx, *h)
	}
	return h, nil
}

func (r *Registry) remember(ctx context.Context, h model.Handle) {
	if !r.cacheAvailable() {
		return
	}
	if err := r.cache.Set(ctx, h, r.cacheTTL); err != nil {
		log.Warn("Handle cache write failed", "screenName", h.ScreenName, "err", err)
	}
}

func (r *Registry) cacheAvailable() bool {
	return r.cache != nil && r.cache.Available()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
