// Package testutil holds fixtures shared by chat-service tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/database"
)

// NewDB opens a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedUsers inserts minimal user profiles.
func SeedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&domain.UserModel{
			ID:        id,
			Role:      "VOLUNTEER",
			FirstName: strings.ToUpper(id[:1]) + id[1:],
			LastName:  "Test",
		}).Error)
	}
}

// SeedChat inserts a chat with the given members. The first member is ADMIN.
func SeedChat(t *testing.T, db *gorm.DB, chatID string, chatType domain.ChatType, members ...string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.ChatModel{ID: chatID, Type: string(chatType)}).Error)
	for i, m := range members {
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleAdmin
		}
		require.NoError(t, db.Create(&domain.ChatParticipantModel{
			ChatID: chatID,
			UserID: m,
			Role:   string(role),
		}).Error)
	}
}

// SeedMessage inserts a message at the given time.
func SeedMessage(t *testing.T, db *gorm.DB, id, chatID, senderID, content string, at time.Time) {
	t.Helper()
	require.NoError(t, db.WithContext(context.Background()).Create(&domain.ChatMessageModel{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      string(domain.MessageTypeDirect),
		CreatedAt: at.UTC(),
	}).Error)
}
