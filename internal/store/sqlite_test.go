package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestCaller(t *testing.T, s *SQLiteStore, name string) Caller {
	t.Helper()
	user, err := s.CreateUser(context.Background(), name, "hash")
	require.NoError(t, err)
	return Caller{UserID: user.ID}
}

// fixedClock makes the store stamp rows with successive instants starting
// at start, one second apart.
func fixedClock(s *SQLiteStore, start time.Time) {
	next := start.UTC()
	s.now = func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := s.GetUserByExternalID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ExternalUserID)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUserByExternalID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	rec, err := s.CreateExtraction(ctx, alice, NewExtraction{
		ExtractedText:  "Jane Doe\nCEO",
		OriginalName:   strPtr("card.jpg"),
		ImageSize:      int64Ptr(2048),
		MimeType:       strPtr("image/jpeg"),
		ProcessingTime: int64Ptr(120),
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, alice.UserID, *rec.UserID)

	got, err := s.GetExtraction(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nCEO", got.ExtractedText)
	assert.Equal(t, "card.jpg", *got.OriginalName)
	assert.Equal(t, int64(2048), *got.ImageSize)
	assert.Equal(t, "image/jpeg", *got.MimeType)
	assert.Equal(t, int64(120), *got.ProcessingTime)
	assert.False(t, got.IsDemo)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestCreateExtraction_OptionalFieldsNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	rec, err := s.CreateExtraction(ctx, alice, NewExtraction{})
	require.NoError(t, err)

	got, err := s.GetExtraction(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.ExtractedText)
	assert.Nil(t, got.OriginalName)
	assert.Nil(t, got.ImageSize)
	assert.Nil(t, got.MimeType)
	assert.Nil(t, got.ProcessingTime)
}

func TestCreateExtraction_RejectsNegativeSizes(t *testing.T) {
	s := newTestStore(t)
	alice := newTestCaller(t, s, "alice")

	_, err := s.CreateExtraction(context.Background(), alice, NewExtraction{ImageSize: int64Ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateExtraction(context.Background(), alice, NewExtraction{ProcessingTime: int64Ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateExtraction_Anonymous(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateExtraction(ctx, Caller{}, NewExtraction{ExtractedText: "demo", IsDemo: true})
	require.NoError(t, err)
	assert.Nil(t, rec.UserID)
	assert.True(t, rec.IsDemo)

	alice := newTestCaller(t, s, "alice")
	_, err = s.GetExtraction(ctx, alice, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnerScopedMethods_RejectAnonymous(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	anon := Caller{}
	page := Page{Number: 1, Size: 10}

	_, _, err := s.ListExtractions(ctx, anon, page)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = s.SearchExtractions(ctx, anon, "x", page)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.GetExtraction(ctx, anon, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, s.DeleteExtraction(ctx, anon, 1), ErrUnauthorized)
	_, err = s.ExtractionStats(ctx, anon)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.ExtractionCounts(ctx, anon, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.CreateContact(ctx, anon, ContactFields{Name: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = s.ListContacts(ctx, anon, ContactFilter{}, page)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListExtractions_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")
	bob := newTestCaller(t, s, "bob")

	fixedClock(s, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 25; i++ {
		_, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: fmt.Sprintf("record %d", i)})
		require.NoError(t, err)
	}
	_, err := s.CreateExtraction(ctx, bob, NewExtraction{ExtractedText: "bob's"})
	require.NoError(t, err)

	first, total, err := s.ListExtractions(ctx, alice, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, first, 10)
	assert.Equal(t, "record 24", first[0].ExtractedText, "newest first")

	last, _, err := s.ListExtractions(ctx, alice, Page{Number: 3, Size: 10})
	require.NoError(t, err)
	require.Len(t, last, 5)
	assert.Equal(t, "record 0", last[4].ExtractedText)

	beyond, _, err := s.ListExtractions(ctx, alice, Page{Number: 4, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestListExtractions_SameTimestampOrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }
	a, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "a"})
	require.NoError(t, err)
	b, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "b"})
	require.NoError(t, err)

	list, _, err := s.ListExtractions(ctx, alice, Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestSearchExtractions_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")
	bob := newTestCaller(t, s, "bob")

	_, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "Hello World"})
	require.NoError(t, err)
	_, err = s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "Goodbye"})
	require.NoError(t, err)
	_, err = s.CreateExtraction(ctx, bob, NewExtraction{ExtractedText: "hello bob"})
	require.NoError(t, err)

	found, total, err := s.SearchExtractions(ctx, alice, "hello", Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "Hello World", found[0].ExtractedText)
}

func TestSearchExtractions_FoldsNonASCIICase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	_, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "ÉLODIE DURAND\nSociété Générale"})
	require.NoError(t, err)
	_, err = s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "Elodie Martin"})
	require.NoError(t, err)

	for _, term := range []string{"élodie", "ÉLODIE", "société générale"} {
		found, total, err := s.SearchExtractions(ctx, alice, term, Page{Number: 1, Size: 10})
		require.NoError(t, err, term)
		assert.Equal(t, 1, total, term)
		require.Len(t, found, 1, term)
		assert.Contains(t, found[0].ExtractedText, "DURAND", term)
	}
}

func TestSearchExtractions_WildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	_, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "discount 50%"})
	require.NoError(t, err)
	_, err = s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "plain"})
	require.NoError(t, err)

	found, total, err := s.SearchExtractions(ctx, alice, "%", Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, found, 1)
}

func TestSearchExtractions_EmptyTerm(t *testing.T) {
	s := newTestStore(t)
	alice := newTestCaller(t, s, "alice")

	_, _, err := s.SearchExtractions(context.Background(), alice, "", Page{Number: 1, Size: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteExtraction_OwnerScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")
	bob := newTestCaller(t, s, "bob")

	rec, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "mine"})
	require.NoError(t, err)

	err = s.DeleteExtraction(ctx, bob, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetExtraction(ctx, alice, rec.ID)
	require.NoError(t, err, "record must survive another user's delete")

	require.NoError(t, s.DeleteExtraction(ctx, alice, rec.ID))
	_, err = s.GetExtraction(ctx, alice, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteExtraction(ctx, alice, rec.ID), ErrNotFound)
}

func TestGetExtraction_OtherOwnerLooksMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")
	bob := newTestCaller(t, s, "bob")

	rec, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: "mine"})
	require.NoError(t, err)

	_, errOther := s.GetExtraction(ctx, bob, rec.ID)
	_, errMissing := s.GetExtraction(ctx, bob, rec.ID+1000)
	assert.ErrorIs(t, errOther, ErrNotFound)
	assert.ErrorIs(t, errMissing, ErrNotFound)
}

func TestExtractionStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	inputs := []NewExtraction{
		{ExtractedText: "abc", MimeType: strPtr("image/png"), ProcessingTime: int64Ptr(100)},
		{ExtractedText: "de", MimeType: strPtr("image/jpeg"), ProcessingTime: int64Ptr(300)},
		{ExtractedText: "", MimeType: strPtr("image/jpeg")},
		{ExtractedText: "fghij"},
	}
	for _, in := range inputs {
		_, err := s.CreateExtraction(ctx, alice, in)
		require.NoError(t, err)
	}

	stats, err := s.ExtractionStats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalResponses)
	assert.Equal(t, 10, stats.TotalTextLength)
	require.NotNil(t, stats.AverageProcessingTime)
	assert.InDelta(t, 200.0, *stats.AverageProcessingTime, 0.001)
	require.NotNil(t, stats.MostCommonMimeType)
	assert.Equal(t, "image/jpeg", *stats.MostCommonMimeType)
}

func TestExtractionStats_TieGoesToFirstSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	for _, mime := range []string{"image/webp", "image/jpeg", "image/jpeg", "image/webp"} {
		_, err := s.CreateExtraction(ctx, alice, NewExtraction{MimeType: strPtr(mime)})
		require.NoError(t, err)
	}

	stats, err := s.ExtractionStats(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, stats.MostCommonMimeType)
	assert.Equal(t, "image/webp", *stats.MostCommonMimeType)
}

func TestExtractionStats_Empty(t *testing.T) {
	s := newTestStore(t)
	alice := newTestCaller(t, s, "alice")

	stats, err := s.ExtractionStats(context.Background(), alice)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalResponses)
	assert.Zero(t, stats.TotalTextLength)
	assert.Nil(t, stats.AverageProcessingTime)
	assert.Nil(t, stats.MostCommonMimeType)
}

func TestExtractionCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := newTestCaller(t, s, "alice")

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, -1, 0)
	windowStart := now.AddDate(0, -2, 0)

	at := func(ts time.Time, text string, ms *int64) {
		s.now = func() time.Time { return ts }
		_, err := s.CreateExtraction(ctx, alice, NewExtraction{ExtractedText: text, ProcessingTime: ms})
		require.NoError(t, err)
	}
	at(now.AddDate(0, -3, 0), "old", nil)                 // before window
	at(windowStart.Add(time.Hour), "prev", int64Ptr(100)) // previous window
	at(cutoff.Add(-time.Millisecond), "", nil)            // previous window, empty text
	at(cutoff, "edge", int64Ptr(200))                     // this month
	at(now.Add(-time.Minute), "recent", int64Ptr(300))    // this month

	counts, err := s.ExtractionCounts(ctx, alice, cutoff, windowStart)
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 3, counts.TotalBeforeCutoff)
	assert.Equal(t, 2, counts.SinceCutoff)
	assert.Equal(t, 2, counts.PreviousWindow)
	assert.Equal(t, 4, counts.NonEmptyText)
	require.NotNil(t, counts.AverageProcessingTime)
	assert.InDelta(t, 200.0, *counts.AverageProcessingTime, 0.001)
}
