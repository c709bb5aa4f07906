package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"healthvault/internal/model"
	"healthvault/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentMemory(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, d := range []model.Document{
		{ID: "a", OwnerID: "U1", Category: model.CategoryReport, CreatedAt: base},
		{ID: "b", OwnerID: "U1", Category: model.CategoryBill, CreatedAt: base.Add(time.Hour)},
		{ID: "c", OwnerID: "U2", Category: model.CategoryReport, CreatedAt: base},
	} {
		d := d
		_, err := repo.Create(ctx, &d)
		require.NoError(t, err, "doc %d", i)
	}

	all, err := repo.FindByOwnerAndCategory(ctx, "U1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "newest first")

	lower, err := repo.FindByOwnerAndCategory(ctx, "U1", "report")
	require.NoError(t, err)
	upper, err := repo.FindByOwnerAndCategory(ctx, "U1", "Report")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
	assert.Len(t, lower, 1)

	none, err := repo.FindByOwnerAndCategory(ctx, "U3", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.FindByID(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), repository.ErrNotFound)
}

func TestShareSessionMemory_RotateKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	repo := NewShareSessionMemory()
	exp := time.Now().Add(10 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Rotate(ctx, &model.ShareSession{
				ID:               string(rune('A' + i)),
				OwnerID:          "U1",
				TokenFingerprint: string(rune('a' + i)),
				ExpiresAt:        exp,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := repo.CountActive(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestShareSessionMemory_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := NewShareSessionMemory()
	now := time.Now()

	_, err := repo.Rotate(ctx, &model.ShareSession{ID: "s1", OwnerID: "U1", TokenFingerprint: "f1", ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	ok, err := repo.MarkUsed(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok, "used is terminal")

	s, err := repo.FindByFingerprint(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, model.ShareStatusUsed, s.Status)

	_, err = repo.FindByFingerprint(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestShareSessionMemory_ExpireBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewShareSessionMemory()
	now := time.Now()

	_, _ = repo.Rotate(ctx, &model.ShareSession{ID: "old", OwnerID: "U1", TokenFingerprint: "f1", ExpiresAt: now.Add(-time.Second)})
	_, _ = repo.Rotate(ctx, &model.ShareSession{ID: "new", OwnerID: "U2", TokenFingerprint: "f2", ExpiresAt: now.Add(time.Minute)})

	n, err := repo.ExpireBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	c, _ := repo.CountActive(ctx, "U2")
	assert.Equal(t, 1, c)
}

func TestShareSessionMemory_Latest(t *testing.T) {
	ctx := context.Background()
	repo := NewShareSessionMemory()
	now := time.Now()

	_, err := repo.Latest(ctx, "U1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	for _, id := range []string{"s1", "s2"} {
		_, err := repo.Rotate(ctx, &model.ShareSession{ID: id, OwnerID: "U1", TokenFingerprint: "f-" + id, ExpiresAt: now.Add(time.Minute), CreatedAt: now})
		require.NoError(t, err)
	}
	_, err = repo.Rotate(ctx, &model.ShareSession{ID: "s3", OwnerID: "U2", TokenFingerprint: "f-s3", ExpiresAt: now.Add(time.Minute), CreatedAt: now})
	require.NoError(t, err)

	latest, err := repo.Latest(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ID)
}

func TestProfileMemory(t *testing.T) {
	repo := NewProfileMemory(model.Profile{ID: "U1", Name: "Asha"})
	p, err := repo.FindByID(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", p.Name)

	_, err = repo.FindByID(context.Background(), "U2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	repo.Put(model.Profile{ID: "U2", Name: "Ben"})
	_, err = repo.FindByID(context.Background(), "U2")
	assert.NoError(t, err)
}
