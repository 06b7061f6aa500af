package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/zonecorr/internal/adapters/session"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

var narrow = ranges.Ranges{{Min: 0, Max: 2}, {Min: -1, Max: 1}, {Min: -1, Max: 0}}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	ticks := []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC),
	}
	i := 0
	s := session.New(session.WithClock(func() time.Time {
		tm := ticks[i]
		if i < len(ticks)-1 {
			i++
		}
		return tm
	}))
	key := session.Key{UserID: "alice", ReactorID: "R7"}

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, session.ErrNotFound)

	first, err := s.Put(ctx, session.Entry{Key: key, Current: thermal.Triple{1, 2, 3}})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, ticks[0], first.CreatedAt)
	assert.Equal(t, 1, s.Count())

	edited, err := s.Put(ctx, session.Entry{Key: key, Current: thermal.Triple{4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, edited.ID, "edits keep the session id")
	assert.Equal(t, ticks[0], edited.CreatedAt)
	assert.Equal(t, ticks[1], edited.UpdatedAt)
	assert.Equal(t, 1, s.Count())

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, thermal.Triple{4, 5, 6}, got.Current)

	require.NoError(t, s.Delete(ctx, key))
	assert.Equal(t, 0, s.Count())
	assert.ErrorIs(t, s.Delete(ctx, key), session.ErrNotFound)
}

func TestEntriesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := session.New()
	key := session.Key{UserID: "alice", ReactorID: "R7"}
	r := narrow

	_, err := s.Put(ctx, session.Entry{Key: key, Ranges: &r})
	require.NoError(t, err)
	r[thermal.ZoneB].Max = 99

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Ranges[thermal.ZoneB].Max)

	got.Ranges[thermal.ZoneB].Max = 42
	again, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Ranges[thermal.ZoneB].Max)
}

func TestInvalidKeysAndCapacity(t *testing.T) {
	ctx := context.Background()
	s := session.New(session.WithMaxSessions(1))

	_, err := s.Put(ctx, session.Entry{Key: session.Key{UserID: "alice"}})
	assert.ErrorIs(t, err, session.ErrInvalidKey)

	_, err = s.Put(ctx, session.Entry{Key: session.Key{UserID: "alice", ReactorID: "R1"}})
	require.NoError(t, err)
	_, err = s.Put(ctx, session.Entry{Key: session.Key{UserID: "alice", ReactorID: "R2"}})
	assert.ErrorIs(t, err, session.ErrCapacity)
	_, err = s.Put(ctx, session.Entry{Key: session.Key{UserID: "alice", ReactorID: "R1"}})
	assert.NoError(t, err, "editing an existing session is always allowed")
}

func TestListByUser(t *testing.T) {
	ctx := context.Background()
	s := session.New()
	for _, k := range []session.Key{{UserID: "alice", ReactorID: "R9"}, {UserID: "alice", ReactorID: "R1"}, {UserID: "bob", ReactorID: "R1"}} {
		_, err := s.Put(ctx, session.Entry{Key: k})
		require.NoError(t, err)
	}

	list := s.ListByUser(ctx, "alice")
	require.Len(t, list, 2)
	assert.Equal(t, "R1", list[0].Key.ReactorID)
	assert.Equal(t, "R9", list[1].Key.ReactorID)
	assert.Empty(t, s.ListByUser(ctx, "carol"))
}

func TestSavedRanges(t *testing.T) {
	ctx := context.Background()
	s := session.New()
	key := session.Key{UserID: "alice", ReactorID: "R7"}

	require.NoError(t, s.SetUserRanges(ctx, "alice", narrow))
	require.NoError(t, s.SetReactorRanges(ctx, key, narrow))

	r, ok := s.UserRanges(ctx, "alice")
	assert.True(t, ok)
	assert.Equal(t, narrow, r)
	r, ok = s.ReactorRanges(ctx, "alice", "R7")
	assert.True(t, ok)
	assert.Equal(t, narrow, r)
	_, ok = s.ReactorRanges(ctx, "alice", "R8")
	assert.False(t, ok)

	users, reactors := s.RangeSets()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, reactors)

	bad := ranges.Ranges{{Min: 1, Max: 0}}
	assert.ErrorIs(t, s.SetUserRanges(ctx, "alice", bad), thermal.ErrRangeInvalid)
	assert.ErrorIs(t, s.SetReactorRanges(ctx, session.Key{UserID: "alice"}, narrow), session.ErrInvalidKey)

	assert.True(t, s.DeleteReactorRanges(ctx, key))
	assert.False(t, s.DeleteReactorRanges(ctx, key))
	assert.True(t, s.DeleteUserRanges(ctx, "alice"))
	_, ok = s.UserRanges(ctx, "alice")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := session.New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := session.Key{UserID: fmt.Sprintf("u%d", w), ReactorID: fmt.Sprintf("R%d", i%5)}
				_, _ = s.Put(ctx, session.Entry{Key: k})
				_, _ = s.Get(ctx, k)
				_ = s.ListByUser(ctx, k.UserID)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 40, s.Count())
}
