package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"indi-radio-go/internal/model"
	"indi-radio-go/internal/repository"
	"indi-radio-go/pkg/hash"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/token"

	"gorm.io/gorm"
)

// UserService 接口定义了注册、登录、注销和查询当前用户
type UserService interface {
	Register(ctx context.Context, username, password, name string) (*model.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, tokenString string) error
	GetProfile(ctx context.Context, userID uint) (*model.User, error)
}

type userService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtManager *token.JWTManager
}

func NewUserService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
	}
}

func (s *userService) Register(ctx context.Context, username, password, name string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("Username and password are required")
	}
	if len(password) < 6 {
		return nil, invalid("Password must be at least 6 characters")
	}

	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{Username: username, Password: hashed, Name: strings.TrimSpace(name)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	log.Infof("[UserService] 新用户注册: id=%d, username=%s", user.ID, user.Username)
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(user.ID, user.Username)
}

// Logout 将令牌加入黑名单直到过期
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return s.tokenRepo.Blacklist(ctx, tokenString, token.RemainingTTL(claims))
}

func (s *userService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
