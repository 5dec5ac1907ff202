package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"ripple/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := &models.Message{SenderID: 1, ReceiverID: 2, Content: "hey"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "messages"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, msg)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_GetConversation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	// The pair is unordered: either direction matches. The query walks
	// backwards from the newest message; callers still see oldest first.
	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "content"}).
		AddRow(2, 2, 1, "hello").
		AddRow(1, 1, 2, "hi")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "messages" WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $3 AND receiver_id = $4)) AND "messages"."deleted_at" IS NULL ORDER BY created_at DESC, id DESC`)).
		WithArgs(1, 2, 2, 1).
		WillReturnRows(rows)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" IN ($1,$2) AND "users"."deleted_at" IS NULL`)).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).
			AddRow(1, "ada").
			AddRow(2, "grace"))

	messages, err := repo.GetConversation(ctx, 1, 2, 0, 0)
	assert.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_GetConversation_LimitReturnsLatestWindow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	// A 60-message thread fetched with limit 50 must surface the newest
	// 50 messages, still in chronological order.
	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "content"})
	for id := 60; id >= 11; id-- {
		rows.AddRow(id, 1, 2, fmt.Sprintf("message %d", id))
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "messages" WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $3 AND receiver_id = $4)) AND "messages"."deleted_at" IS NULL ORDER BY created_at DESC, id DESC LIMIT $5`)).
		WithArgs(1, 2, 2, 1, 50).
		WillReturnRows(rows)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).AddRow(1, "ada"))

	messages, err := repo.GetConversation(ctx, 1, 2, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 50)
	assert.Equal(t, uint(11), messages[0].ID)
	assert.Equal(t, uint(60), messages[len(messages)-1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_ListPartners(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`MAX\(id\) AS last_msg_id`).
		WithArgs(1, 1, 1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"partner_id", "last_msg_id"}).
			AddRow(2, 10).
			AddRow(3, 11))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id IN ($1,$2)`)).
		WithArgs(2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name"}).
			AddRow(2, "grace").
			AddRow(3, "linus"))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "messages" WHERE id IN ($1,$2)`)).
		WithArgs(10, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "content", "created_at"}).
			AddRow(10, 1, 2, "old", now.Add(-time.Hour)).
			AddRow(11, 3, 1, "new", now))

	partners, err := repo.ListPartners(ctx, 1)
	require.NoError(t, err)
	require.Len(t, partners, 2)
	// Most recent conversation first
	assert.Equal(t, uint(3), partners[0].User.ID)
	assert.Equal(t, "new", partners[0].LastMessage.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_ListPartners_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`MAX\(id\) AS last_msg_id`).
		WithArgs(1, 1, 1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"partner_id", "last_msg_id"}))

	partners, err := repo.ListPartners(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, partners)
	assert.NoError(t, mock.ExpectationsWereMet())
}
