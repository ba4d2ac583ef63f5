package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

var errInvitationLapsed = errors.New("invitation lapsed")

// GormRepository implements ChatRepository and InvitationRepository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based chat repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// CreateChat inserts the chat and its initial participants atomically.
func (r *GormRepository) CreateChat(ctx context.Context, chat *domain.Chat, participants []domain.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := domain.ChatToModel(chat)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		chat.CreatedAt = model.CreatedAt

		if len(participants) == 0 {
			return nil
		}
		rows := lo.Map(participants, func(p domain.Participant, _ int) *domain.ChatParticipantModel {
			p.ChatID = chat.ID
			return domain.ParticipantToModel(&p)
		})
		if err := tx.Create(rows).Error; err != nil {
			return r.handleError(err)
		}
		return nil
	})
}

// GetChat retrieves a chat by ID.
func (r *GormRepository) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var model domain.ChatModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", chatID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListChatsForUser returns the user's chats, most recently active first.
func (r *GormRepository) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var models []domain.ChatModel
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Order("COALESCE(chats.last_message_at, chats.created_at) DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(models, func(m domain.ChatModel, _ int) domain.Chat {
		return *m.ToDomain()
	}), nil
}

// UnreadCounts counts, per chat, messages from others the user has not read.
func (r *GormRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []struct {
		ChatID string
		Unread int64
	}
	err := r.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select("m.chat_id AS chat_id, COUNT(*) AS unread").
		Joins("JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = ?", userID).
		Joins("LEFT JOIN chat_message_reads rd ON rd.message_id = m.id AND rd.user_id = ?", userID).
		Where("rd.message_id IS NULL AND m.sender_id <> ?", userID).
		Group("m.chat_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ChatID] = row.Unread
	}
	return counts, nil
}

// IsParticipant reports whether a membership row exists.
func (r *GormRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ChatParticipantModel{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListParticipantIDs returns the user ids of every participant.
func (r *GormRepository) ListParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.ChatParticipantModel{}).
		Where("chat_id = ?", chatID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AddParticipant inserts a membership row.
func (r *GormRepository) AddParticipant(ctx context.Context, p *domain.Participant) error {
	if err := r.db.WithContext(ctx).Create(domain.ParticipantToModel(p)).Error; err != nil {
		return r.handleError(err)
	}
	return nil
}

// CreateMessage appends a message.
func (r *GormRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(domain.MessageToModel(msg)).Error
}

// GetMessage retrieves a message by ID.
func (r *GormRepository) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	var model domain.ChatMessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", messageID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// TouchLastMessageAt advances the chat's activity timestamp.
func (r *GormRepository) TouchLastMessageAt(ctx context.Context, chatID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.ChatModel{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", chatID, at).
		Update("last_message_at", at).Error
}

// MarkRead records a read receipt. Repeated receipts are ignored.
func (r *GormRepository) MarkRead(ctx context.Context, userID, messageID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.MessageReadModel{MessageID: messageID, UserID: userID}).Error
}

// MarkReadUpTo records receipts for every message in the chat up to and
// including messageID and returns how many were new.
func (r *GormRepository) MarkReadUpTo(ctx context.Context, chatID, userID, messageID string) (int64, error) {
	upTo, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return 0, err
	}
	if upTo.ChatID != chatID {
		return 0, ErrMessageNotFound
	}

	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO chat_message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, ?
		FROM chat_messages m
		WHERE m.chat_id = ?
		  AND (m.created_at < ? OR (m.created_at = ? AND m.id <= ?))
		  AND NOT EXISTS (
		    SELECT 1 FROM chat_message_reads rd
		    WHERE rd.message_id = m.id AND rd.user_id = ?
		  )`,
		userID, time.Now().UTC(), chatID, upTo.CreatedAt, upTo.CreatedAt, upTo.ID, userID)
	return result.RowsAffected, result.Error
}

// ListMessages pages backwards through a chat's history.
func (r *GormRepository) ListMessages(ctx context.Context, chatID, beforeID string, limit int) ([]domain.Message, error) {
	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)

	if beforeID != "" {
		cursor, err := r.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var models []domain.ChatMessageModel
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return lo.Reverse(toMessages(models)), nil
}

// RecentMessagesForUser returns the newest messages in any chat the user
// participates in.
func (r *GormRepository) RecentMessagesForUser(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	var models []domain.ChatMessageModel
	err := r.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select("m.*").
		Joins("JOIN chat_participants p ON p.chat_id = m.chat_id").
		Where("p.user_id = ?", userID).
		Order("m.created_at DESC").
		Order("m.id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toMessages(models), nil
}

// GetUsers loads user profiles keyed by id. Unknown ids are absent.
func (r *GormRepository) GetUsers(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	ids = lo.Uniq(lo.Compact(ids))
	users := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for i := range models {
		users[models[i].ID] = models[i].ToDomain()
	}
	return users, nil
}

// CreateInvitation stores a new invitation.
func (r *GormRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	model := domain.InvitationToModel(inv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	inv.CreatedAt = model.CreatedAt
	return nil
}

// GetInvitation retrieves an invitation by ID.
func (r *GormRepository) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.getInvitation(r.db.WithContext(ctx), id)
}

func (r *GormRepository) getInvitation(db *gorm.DB, id string) (*domain.Invitation, error) {
	var model domain.ChatInvitationModel
	result := db.First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// AcceptInvitation resolves a pending invitation and adds the invitee.
func (r *GormRepository) AcceptInvitation(ctx context.Context, id string, now time.Time) (*domain.Invitation, error) {
	var accepted *domain.Invitation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.resolve(tx, id, domain.InvitationAccepted, now); err != nil {
			return err
		}

		inv, err := r.getInvitation(tx, id)
		if err != nil {
			return err
		}

		member := domain.ParticipantToModel(&domain.Participant{
			ChatID:   inv.ChatID,
			UserID:   inv.InviteeID,
			Role:     domain.RoleMember,
			JoinedAt: now,
		})
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error; err != nil {
			return err
		}

		accepted = inv
		return nil
	})
	if err != nil {
		return nil, r.expireLapsed(r.db.WithContext(ctx), id, err)
	}
	return accepted, nil
}

// DeclineInvitation resolves a pending invitation as declined.
func (r *GormRepository) DeclineInvitation(ctx context.Context, id string, now time.Time) (*domain.Invitation, error) {
	db := r.db.WithContext(ctx)
	if err := r.resolve(db, id, domain.InvitationDeclined, now); err != nil {
		return nil, r.expireLapsed(db, id, err)
	}
	return r.getInvitation(db, id)
}

// resolve moves a PENDING, unexpired invitation to status. When no row
// matches it reports why; a lapsed but unswept invitation yields
// errInvitationLapsed.
func (r *GormRepository) resolve(db *gorm.DB, id string, status domain.InvitationStatus, now time.Time) error {
	result := db.Model(&domain.ChatInvitationModel{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, string(domain.InvitationPending), now).
		Updates(map[string]interface{}{
			"status":       string(status),
			"responded_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	inv, err := r.getInvitation(db, id)
	if err != nil {
		return err
	}
	if inv.Status == domain.InvitationPending && inv.Expired(now) {
		return errInvitationLapsed
	}
	return ErrInvitationNotPending
}

// expireLapsed turns errInvitationLapsed into ErrInvitationNotPending after
// recording the expiry. It must run on a handle outside the response
// transaction, which rolls back on the refusal.
func (r *GormRepository) expireLapsed(db *gorm.DB, id string, err error) error {
	if !errors.Is(err, errInvitationLapsed) {
		return err
	}
	if uerr := db.Model(&domain.ChatInvitationModel{}).
		Where("id = ? AND status = ?", id, string(domain.InvitationPending)).
		Update("status", string(domain.InvitationExpired)).Error; uerr != nil {
		return uerr
	}
	return ErrInvitationNotPending
}

// ExpireInvitations moves every lapsed PENDING invitation to EXPIRED.
func (r *GormRepository) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.ChatInvitationModel{}).
		Where("status = ? AND expires_at <= ?", string(domain.InvitationPending), now).
		Update("status", string(domain.InvitationExpired))
	return result.RowsAffected, result.Error
}

// ListPendingForUser returns invitations the user can still answer.
func (r *GormRepository) ListPendingForUser(ctx context.Context, userID string, now time.Time) ([]domain.Invitation, error) {
	var models []domain.ChatInvitationModel
	err := r.db.WithContext(ctx).
		Where("invitee_id = ? AND status = ? AND expires_at > ?", userID, string(domain.InvitationPending), now).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(models, func(m domain.ChatInvitationModel, _ int) domain.Invitation {
		return *m.ToDomain()
	}), nil
}

func toMessages(models []domain.ChatMessageModel) []domain.Message {
	return lo.Map(models, func(m domain.ChatMessageModel, _ int) domain.Message {
		return *m.ToDomain()
	})
}

// handleError converts database-specific errors to domain errors.
func (r *GormRepository) handleError(err error) error {
	errStr := err.Error()

	// PostgreSQL and SQLite unique constraint violation
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		return ErrAlreadyParticipant
	}

	// MySQL unique constraint violation
	if strings.Contains(errStr, "Duplicate entry") {
		return ErrAlreadyParticipant
	}

	return err
}
