package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, HashedPassword: "x"}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	return u
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "alice")

	err := NewUserRepo(db).Create(context.Background(), &domain.User{Username: "alice", HashedPassword: "y"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateOrGetPairIsDirectionless(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	repo := NewConversationRepo(db)

	first, created, err := repo.CreateOrGetPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)

	// The reverse direction resolves to the same row.
	second, created, err := repo.CreateOrGetPair(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	ids, err := NewParticipantRepo(db).ListParticipantIDs(ctx, first.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{alice.ID, bob.ID}, ids)
}

func TestCreateOrGetPairConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	repo := NewConversationRepo(db)

	// Racing creates from both directions must collapse to one row,
	// whether a goroutine wins the insert or loses and re-reads.
	const attempts = 8
	ids := make(chan int64, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		a, b := alice.ID, bob.ID
		if i%2 == 1 {
			a, b = b, a
		}
		wg.Add(1)
		go func(a, b int64) {
			defer wg.Done()
			conv, _, err := repo.CreateOrGetPair(ctx, a, b)
			if assert.NoError(t, err) {
				ids <- conv.ID
			}
		}(a, b)
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		assert.Equal(t, first, id)
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMessageExclusivityEnforcedBySchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	conv, _, err := NewConversationRepo(db).CreateOrGetPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	repo := NewMessageRepo(db)
	content := "hi"
	url := "/uploads/x.png"

	assert.Error(t, repo.Create(ctx, &domain.Message{
		ConversationID: conv.ID, SenderID: alice.ID,
	}), "neither field set must be rejected")
	assert.Error(t, repo.Create(ctx, &domain.Message{
		ConversationID: conv.ID, SenderID: alice.ID, Content: &content, ImageURL: &url,
	}), "both fields set must be rejected")
	assert.NoError(t, repo.Create(ctx, &domain.Message{
		ConversationID: conv.ID, SenderID: alice.ID, Content: &content,
	}))
	assert.NoError(t, repo.Create(ctx, &domain.Message{
		ConversationID: conv.ID, SenderID: alice.ID, ImageURL: &url,
	}))
}

func TestListForConversationOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	conv, _, err := NewConversationRepo(db).CreateOrGetPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	repo := NewMessageRepo(db)
	var wantIDs []int64
	for _, body := range []string{"one", "two", "three"} {
		body := body
		m := &domain.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: &body}
		require.NoError(t, repo.Create(ctx, m))
		wantIDs = append(wantIDs, m.ID)
	}

	views, err := repo.ListForConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for i, v := range views {
		// Inserts land within the same timestamp granularity; id breaks
		// the tie, so history keeps insertion order.
		assert.Equal(t, wantIDs[i], v.ID)
		assert.Equal(t, "alice", v.Sender)
	}
	assert.Equal(t, "one", *views[0].Content)
	assert.Equal(t, "three", *views[2].Content)
}

func TestListForUserSummaries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	repo := NewConversationRepo(db)
	conv, _, err := repo.CreateOrGetPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// Fresh conversation: no preview, timestamp falls back to creation.
	summaries, err := repo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, conv.ID, summaries[0].ID)
	assert.Equal(t, []string{"bob"}, summaries[0].Participants)
	assert.Nil(t, summaries[0].LastMessage)
	assert.Equal(t, conv.CreatedAt.Unix(), summaries[0].LastTimestamp.Unix())

	body := "latest"
	require.NoError(t, NewMessageRepo(db).Create(ctx, &domain.Message{
		ConversationID: conv.ID, SenderID: bob.ID, Content: &body,
	}))

	summaries, err = repo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "latest", *summaries[0].LastMessage)
}

func TestIsParticipant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")
	conv, _, err := NewConversationRepo(db).CreateOrGetPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	parts := NewParticipantRepo(db)
	ok, err := parts.IsParticipant(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = parts.IsParticipant(ctx, conv.ID, eve.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
