package postgres

import (
	"errors"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table the service owns, in migration order.
var Models = []any{
	&domain.User{},
	&domain.UserRole{},
	&domain.RefreshToken{},
	&domain.PhoneOtp{},
	&domain.JobPosting{},
}

func NewConnection(databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate tables
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, err
	}

	return db, nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		Role:         NewRoleRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		PhoneOtp:     NewPhoneOtpRepository(db),
		JobPosting:   NewJobPostingRepository(db),
	}
}

// translate maps gorm errors onto the repository contract.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrIdentityTaken
	default:
		return err
	}
}
