package service

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/model"
	"github.com/weblan/neural_go_server/internal/model/dto"
	"github.com/weblan/neural_go_server/internal/pkg/jwt"
	"github.com/weblan/neural_go_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserDisabled       = errors.New("账号已被禁用")
)

// AuthService 注册登录
type AuthService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Register 注册新用户，邮箱唯一
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         "free",
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return &dto.RegisterResponse{UserID: user.ID}, nil
}

// Login 校验密码并签发 token
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token:     token,
		ExpiresIn: s.cfg.JWT.ExpireHours * 3600,
		User:      toProfile(user),
	}, nil
}

// GetProfile 获取用户信息
func (s *AuthService) GetProfile(userID int64) (*dto.UserProfile, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toProfile(user), nil
}

// UpdateGeminiKey 保存用户自己的 Gemini API key，空字符串表示清除
func (s *AuthService) UpdateGeminiKey(userID int64, apiKey string) error {
	return s.userRepo.UpdateFields(userID, map[string]interface{}{
		"gemini_api_key": apiKey,
	})
}

func toProfile(user *model.User) *dto.UserProfile {
	return &dto.UserProfile{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          user.Role,
		TotalAnalyses: user.TotalAnalyses,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
}
