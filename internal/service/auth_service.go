package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/internal/util"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthUserRepo is the slice of the user repository auth needs.
type AuthUserRepo interface {
	Insert(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type AuthService struct {
	users     AuthUserRepo
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(users AuthUserRepo, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Prefs: model.UserPrefs{
			EmailNotificationsEnabled: true,
			ReminderTime:              "09:00",
			Timezone:                  "UTC",
		},
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.Int("user_id", user.ID),
		zap.String("username", username),
	)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !util.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return util.GenerateJWT(user.ID, s.jwtSecret, 24*time.Hour)
}
