package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DefaultsAndClamping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.links.Generate(ctx, GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLinkTitle, link.Title)
	assert.Equal(t, DefaultLinkDays, link.DurationDays)
	assert.Equal(t, DefaultBlockMinutes, link.BlockMinutes)
	assert.Equal(t, f.now.Add(7*24*time.Hour), link.ExpiresAt)
	assert.NotEmpty(t, link.Token)

	for _, tc := range []struct {
		days, want int
	}{
		{days: 500, want: MaxLinkDays},
		{days: 30, want: 30},
		{days: 0, want: 1},
		{days: -3, want: 1},
	} {
		link, err = f.links.Generate(ctx, GenerateRequest{DurationDays: ptr(tc.days)})
		require.NoError(t, err)
		assert.Equal(t, tc.want, link.DurationDays, "duration_days=%d", tc.days)
	}

	bad := -5
	_, err = f.links.Generate(ctx, GenerateRequest{BlockMinutes: &bad})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestGenerate_KeepsOneActiveLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.links.Generate(ctx, GenerateRequest{Title: "first"})
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	second, err := f.links.Generate(ctx, GenerateRequest{Title: "second"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	cur, ok, err := f.links.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)

	_, err = f.engine.Slots(ctx, first.Token, ListingQuery{})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestCurrent_RetiresExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok, err := f.links.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	link, err := f.links.Generate(ctx, GenerateRequest{DurationDays: ptr(1)})
	require.NoError(t, err)
	f.now = link.ExpiresAt.Add(time.Second)

	_, ok, err = f.links.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := f.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.links.Generate(ctx, GenerateRequest{})
	require.NoError(t, err)

	n, err := f.links.Deactivate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := f.links.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
