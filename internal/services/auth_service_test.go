// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/photocard-backend/internal/config"
	"github.com/javajoker/photocard-backend/internal/models"
	"github.com/javajoker/photocard-backend/internal/utils"
)

type AuthServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *AuthService
}

func (s *AuthServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&models.User{}))

	utils.SetJWTSecret("test-secret-key")

	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "test-secret-key",
			AccessTokenTTL:  24,
			RefreshTokenTTL: 168,
		},
	}

	s.db = db
	s.svc = NewAuthService(db, cfg)
}

func (s *AuthServiceTestSuite) register(username, email string) *AuthResponse {
	resp, err := s.svc.Register(&RegisterRequest{
		Username: username,
		Email:    email,
		Password: "StrongPass1!",
	})
	s.Require().NoError(err)
	return resp
}

func (s *AuthServiceTestSuite) TestRegisterGrantsStartingCash() {
	resp := s.register("newuser", "new@example.com")

	s.Equal(models.DefaultStartingCash, resp.User.Cash)
	s.Equal(models.UserStatusActive, resp.User.Status)
	s.NotEmpty(resp.AccessToken)
	s.NotEmpty(resp.RefreshToken)
	s.Equal("Bearer", resp.TokenType)
}

func (s *AuthServiceTestSuite) TestRegisterDuplicate() {
	s.register("newuser", "new@example.com")

	_, err := s.svc.Register(&RegisterRequest{
		Username: "newuser",
		Email:    "other@example.com",
		Password: "StrongPass1!",
	})
	s.ErrorIs(err, ErrUserExists)
}

func (s *AuthServiceTestSuite) TestLogin() {
	s.register("newuser", "new@example.com")

	resp, err := s.svc.Login(&LoginRequest{Email: "new@example.com", Password: "StrongPass1!"})
	s.Require().NoError(err)
	s.NotEmpty(resp.AccessToken)
	s.NotNil(resp.User.LastLoginAt)
}

func (s *AuthServiceTestSuite) TestLoginWrongPassword() {
	s.register("newuser", "new@example.com")

	_, err := s.svc.Login(&LoginRequest{Email: "new@example.com", Password: "WrongPass1!"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestLoginUnknownEmail() {
	_, err := s.svc.Login(&LoginRequest{Email: "ghost@example.com", Password: "StrongPass1!"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestRefreshToken() {
	resp := s.register("newuser", "new@example.com")

	refreshed, err := s.svc.RefreshToken(resp.RefreshToken)
	s.Require().NoError(err)
	s.NotEmpty(refreshed.AccessToken)
	s.Equal(resp.User.ID, refreshed.User.ID)
}

func (s *AuthServiceTestSuite) TestRefreshTokenInvalid() {
	_, err := s.svc.RefreshToken("not-a-token")
	s.Error(err)
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
