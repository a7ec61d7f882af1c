package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"focusflow/internal/model"
)

// ErrEmailTaken is returned when signing up with a registered email.
var ErrEmailTaken = errors.New("email already registered")

// ErrChatLinked is returned when a Telegram chat already belongs to another user.
var ErrChatLinked = errors.New("telegram chat linked to another account")

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user unless the email is already registered.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

// SetTelegramChatID links (or, with nil, unlinks) a digest chat. A chat
// belongs to at most one user.
func (r *UserRepository) SetTelegramChatID(ctx context.Context, userID string, chatID *int64) error {
	db := r.db.WithContext(ctx)
	if chatID != nil {
		var taken int64
		err := db.Model(&model.User{}).
			Where("telegram_chat_id = ? AND id <> ?", *chatID, userID).
			Count(&taken).Error
		if err != nil {
			return fmt.Errorf("check chat: %w", err)
		}
		if taken > 0 {
			return ErrChatLinked
		}
	}
	res := db.Model(&model.User{}).Where("id = ?", userID).Update("telegram_chat_id", chatID)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithTelegram returns users that receive digests.
func (r *UserRepository) ListWithTelegram(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
