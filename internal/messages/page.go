package messages

import (
	"context"

	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
)

// Window locates one page within a ledger of messageNo values 1..TotalElements.
type Window struct {
	TotalElements int64
	TotalPages    int64
	// StartAt is the highest messageNo on the page. Negative means the page
	// lies past the end of the ledger.
	StartAt int64
}

// ComputeWindow derives the page window from the owner's messageCount. The
// counter is one ahead of the number of posted messages, so an unset or
// zero counter means an empty ledger.
func ComputeWindow(messageCount, page, size int64) Window {
	var total int64
	if messageCount != 0 {
		total = messageCount - 1
	}
	w := Window{
		TotalElements: total,
		TotalPages:    (total + size - 1) / size,
		StartAt:       -1,
	}
	// Past total/size the product exceeds total, and for huge pages it would
	// wrap around to a positive start.
	if page-1 <= total/size {
		w.StartAt = total - (page-1)*size
	}
	return w
}

// ListPage returns page (1-based) of the owner's messages, newest first,
// with denied messages redacted.
func (l *Ledger) ListPage(ctx context.Context, uid string, page, size int64) (*model.Page, error) {
	if page < 1 {
		return nil, &registrystore.ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if size < 1 {
		return nil, &registrystore.ValidationError{Field: "size", Message: "must be at least 1"}
	}

	var result model.Page
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx registrystore.Tx) error {
		user, err := requireUser(ctx, tx, uid)
		if err != nil {
			return err
		}
		var count int64
		if user.MessageCount != nil {
			count = *user.MessageCount
		}
		w := ComputeWindow(count, page, size)
		result = model.Page{
			TotalElements: w.TotalElements,
			TotalPages:    w.TotalPages,
			Page:          page,
			Size:          size,
			Content:       []model.MessageView{},
		}
		if w.StartAt < 0 {
			if !l.strictPageTotals {
				result.TotalPages = 0
			}
			return nil
		}

		msgs, err := tx.ListMessages(ctx, uid, w.StartAt, int(size))
		if err != nil {
			return err
		}
		content := make([]model.MessageView, len(msgs))
		for i := range msgs {
			content[i] = msgs[i].View(true)
		}
		result.Content = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
