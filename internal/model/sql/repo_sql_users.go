package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

// CreateUser inserts a new user account.
func (r *GormRepository) CreateUser(ctx context.Context, user *entity.DbUser) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser updates a user with the provided fields.
func (r *GormRepository) UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid user id")
	}
	if len(updates) == 0 {
		return fmt.Errorf("no updates provided")
	}
	return r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("id = ?", id).Updates(updates).Error
}

// GetUserByEmail retrieves a user by email address.
func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by primary key.
func (r *GormRepository) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers retrieves paginated user accounts.
func (r *GormRepository) ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbUser{})
	if params != nil {
		if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
			like := "%" + keyword + "%"
			query = query.Where("email LIKE ? OR display_name LIKE ?", like, like)
		}
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := applyPagination(base)

	var users []entity.DbUser
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(totalCount, page, pageSize)
	return users, meta, nil
}

// DeleteUser removes a user and its profile.
func (r *GormRepository) DeleteUser(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid user id")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&entity.DbProfile{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.DbUser{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountUsers returns the number of registered users.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbUser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateProfile inserts a profile row for a user.
func (r *GormRepository) CreateProfile(ctx context.Context, profile *entity.DbProfile) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetProfileByUserID retrieves the profile linked to a user.
func (r *GormRepository) GetProfileByUserID(ctx context.Context, userID uint) (*entity.DbProfile, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var profile entity.DbProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates a profile with the provided fields.
func (r *GormRepository) UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid profile id")
	}
	if len(updates) == 0 {
		return fmt.Errorf("no updates provided")
	}
	return r.db.WithContext(ctx).Model(&entity.DbProfile{}).Where("id = ?", id).Updates(updates).Error
}

// TouchProfile stamps the profile's last_active timestamp.
func (r *GormRepository) TouchProfile(ctx context.Context, userID uint, at time.Time) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return fmt.Errorf("invalid user id")
	}
	return r.db.WithContext(ctx).Model(&entity.DbProfile{}).Where("user_id = ?", userID).Update("last_active", at).Error
}
