package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/pkg/crypto"
	jwtpkg "github.com/tourforge/backend/pkg/jwt"
	"gorm.io/gorm"
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Login authenticates a user and returns access and refresh tokens
func (s *AuthService) Login(username, password string) (string, string, *models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, errors.New("invalid credentials")
		}
		return "", "", nil, err
	}

	if !user.IsActive {
		return "", "", nil, errors.New("account is deactivated")
	}

	if !crypto.CheckPassword(password, user.Password) {
		return "", "", nil, errors.New("invalid credentials")
	}

	accessToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	refreshToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	refreshTokenModel := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshTokenDuration),
	}
	if err := s.db.Create(refreshTokenModel).Error; err != nil {
		return "", "", nil, err
	}

	return accessToken, refreshToken, &user, nil
}

// Register creates a new user account
func (s *AuthService) Register(username, email, password string) (*models.User, error) {
	var existingUser models.User
	if err := s.db.Where("username = ? OR email = ?", username, email).First(&existingUser).Error; err == nil {
		if existingUser.Username == username {
			return nil, errors.New("username already taken")
		}
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	claims, err := jwtpkg.ValidateToken(refreshToken, s.cfg.JWTSecret)
	if err != nil || claims.TokenType != jwtpkg.RefreshToken {
		return "", errors.New("invalid refresh token")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token = ?", refreshToken).First(&stored).Error; err != nil {
		return "", errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.db.Delete(&stored).Error
		return "", errors.New("refresh token expired")
	}

	return jwtpkg.GenerateToken(claims.UserID, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
}

// Logout revokes a refresh token
func (s *AuthService) Logout(refreshToken string) error {
	return s.db.Where("token = ?", refreshToken).Delete(&models.RefreshToken{}).Error
}

// ValidateAccessToken validates an access token and returns the user id
func (s *AuthService) ValidateAccessToken(token string) (uuid.UUID, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil || claims.TokenType != jwtpkg.AccessToken {
		return uuid.Nil, errors.New("invalid access token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, errors.New("invalid access token")
	}
	return userID, nil
}
