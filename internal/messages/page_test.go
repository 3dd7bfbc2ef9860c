package messages_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/chirino/askbox/internal/messages"
	"github.com/chirino/askbox/internal/model"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeWindow(t *testing.T) {
	tests := []struct {
		name                       string
		count, page, size          int64
		total, totalPages, startAt int64
	}{
		{name: "unset counter", count: 0, page: 1, size: 10, total: 0, totalPages: 0, startAt: 0},
		{name: "one message", count: 2, page: 1, size: 10, total: 1, totalPages: 1, startAt: 1},
		{name: "exact pages", count: 21, page: 2, size: 10, total: 20, totalPages: 2, startAt: 10},
		{name: "partial last page", count: 26, page: 3, size: 10, total: 25, totalPages: 3, startAt: 5},
		{name: "past the end", count: 6, page: 3, size: 3, total: 5, totalPages: 2, startAt: -1},
		{name: "just past an exact end", count: 7, page: 3, size: 3, total: 6, totalPages: 2, startAt: 0},
		{name: "huge page", count: 4, page: 1<<62 + 1, size: 4, total: 3, totalPages: 1, startAt: -1},
		{name: "max page", count: 101, page: math.MaxInt64, size: 100, total: 100, totalPages: 1, startAt: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := messages.ComputeWindow(tc.count, tc.page, tc.size)
			assert.Equal(t, tc.total, w.TotalElements)
			assert.Equal(t, tc.totalPages, w.TotalPages)
			assert.Equal(t, tc.startAt, w.StartAt)
		})
	}
}

func TestListPage_EmptyLedger(t *testing.T) {
	ledger, _, ctx := setupLedger(t)

	page, err := ledger.ListPage(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.TotalElements)
	assert.Equal(t, int64(0), page.TotalPages)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
}

func TestListPage_DisjointDescendingWindows(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	for i := 1; i <= 7; i++ {
		_, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	first, err := ledger.ListPage(ctx, "u1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), first.TotalElements)
	assert.Equal(t, int64(3), first.TotalPages)
	assert.Equal(t, int64(1), first.Page)
	assert.Equal(t, int64(3), first.Size)

	second, err := ledger.ListPage(ctx, "u1", 2, 3)
	require.NoError(t, err)
	third, err := ledger.ListPage(ctx, "u1", 3, 3)
	require.NoError(t, err)

	var nos []int64
	for _, p := range [][]int64{noList(first.Content), noList(second.Content), noList(third.Content)} {
		nos = append(nos, p...)
	}
	assert.Equal(t, []int64{7, 6, 5, 4, 3, 2, 1}, nos)
	assert.Equal(t, "m7", first.Content[0].Message)
}

func TestListPage_PastTheEnd(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	for i := 0; i < 5; i++ {
		_, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "m"})
		require.NoError(t, err)
	}

	page, err := ledger.ListPage(ctx, "u1", 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, int64(0), page.TotalPages)
	assert.Empty(t, page.Content)
}

func TestListPage_PastTheEndStrictTotals(t *testing.T) {
	ledger, _, ctx := setupLedger(t, messages.WithStrictPageTotals(true))
	for i := 0; i < 5; i++ {
		_, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: "m"})
		require.NoError(t, err)
	}

	page, err := ledger.ListPage(ctx, "u1", 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalPages)
	assert.Empty(t, page.Content)
}

func TestListPage_Validation(t *testing.T) {
	ledger, _, ctx := setupLedger(t)

	var verr *registrystore.ValidationError
	_, err := ledger.ListPage(ctx, "u1", 0, 10)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "page", verr.Field)

	_, err = ledger.ListPage(ctx, "u1", 1, 0)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size", verr.Field)

	var nf *registrystore.NotFoundError
	_, err = ledger.ListPage(ctx, "ghost", 1, 10)
	require.ErrorAs(t, err, &nf)
}

func noList(content []model.MessageView) []int64 {
	out := make([]int64, len(content))
	for i, m := range content {
		out[i] = m.MessageNo
	}
	return out
}

func TestListPage_HugePageIsEmpty(t *testing.T) {
	ledger, _, ctx := setupLedger(t)
	for i := 1; i <= 3; i++ {
		_, err := ledger.Post(ctx, messages.PostInput{UID: "u1", Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	page, err := ledger.ListPage(ctx, "u1", 1<<62+1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, int64(0), page.TotalPages)
	assert.Empty(t, page.Content)
}
