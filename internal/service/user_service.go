package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hospital-inventory/internal/access"
	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/token"
	"hospital-inventory/pkg/validator"

	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=255"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"max=255"`
	Role     string `json:"role" binding:"required,oneof=admin subordinate"`
	IsActive *bool  `json:"isActive"`
}

type UpdateUserRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,max=255"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin subordinate"`
	IsActive *bool   `json:"isActive"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type MeResponse struct {
	User         *model.User     `json:"user"`
	Capabilities []access.Action `json:"capabilities"`
}

// RateLimiter is satisfied by the redis client.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// UserService covers account management and sign-in.
type UserService interface {
	Login(ctx context.Context, clientIP string, req LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, actor Actor) (*MeResponse, error)
	Create(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, role string, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type userService struct {
	repo      repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	tokens    *token.Manager
	limiter   RateLimiter
	limits    config.AuthRateLimitConfig
	log       *logger.Logger
}

// NewUserService wires the user service. limiter may be nil, which disables
// login rate limiting.
func NewUserService(
	repo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *token.Manager,
	limiter RateLimiter,
	limits config.AuthRateLimitConfig,
	log *logger.Logger,
) UserService {
	if log == nil {
		log = logger.Nop()
	}
	return &userService{
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		tokens:    tokens,
		limiter:   limiter,
		limits:    limits,
		log:       log,
	}
}

var errInvalidCredentials = apperror.New(apperror.CodeUnauthorized, "invalid username or password")

func (s *userService) Login(ctx context.Context, clientIP string, req LoginRequest) (*LoginResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)

	if err := s.checkLoginRate(ctx, clientIP, username); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.CodeUnauthorized, "account is disabled")
	}

	signed, expiresAt, err := s.tokens.Generate(user.ID.String(), user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &LoginResponse{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

// checkLoginRate fails open when the limiter is unavailable.
func (s *userService) checkLoginRate(ctx context.Context, clientIP, username string) error {
	if s.limiter == nil || s.limits.LoginWindow <= 0 {
		return nil
	}
	scopes := []struct {
		key   string
		limit int64
	}{
		{"login:ip:" + clientIP, s.limits.LoginIPLimit},
		{"login:user:" + strings.ToLower(username), s.limits.LoginUserLimit},
	}
	for _, sc := range scopes {
		if sc.limit <= 0 {
			continue
		}
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, sc.key, sc.limit, s.limits.LoginWindow)
		if err != nil {
			s.log.Error(ctx, "login rate limiter unavailable", err)
			return nil
		}
		if !allowed {
			return apperror.New(apperror.CodeRateLimit, "too many login attempts, try again later")
		}
	}
	return nil
}

func (s *userService) Me(ctx context.Context, actor Actor) (*MeResponse, error) {
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &MeResponse{User: user, Capabilities: access.Capabilities(user.Role)}, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *userService) Create(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: strings.TrimSpace(req.Username),
		Password: hashed,
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: true,
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByUsername(txCtx, user.Username); err == nil {
			return apperror.Validation("username already exists")
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if err := s.repo.Create(txCtx, user); err != nil {
			return duplicateOr(err, "username already exists")
		}
		audit := newAudit(actor, model.ActionCreateUser, user.ID.String(), user.Username,
			map[string]interface{}{"role": user.Role, "isActive": user.IsActive})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, role string, page, limit int) ([]model.User, int64, error) {
	if role != "" && !model.ValidRole(role) {
		return nil, 0, apperror.Validation("role must be admin or subordinate")
	}
	p := pagination.New(page, limit)
	users, total, err := s.repo.List(ctx, role, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *userService) Update(ctx context.Context, actor Actor, id string, req UpdateUserRequest) (*model.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err = s.repo.GetByID(txCtx, userID)
		if err != nil {
			return notFoundOr(err, "user")
		}

		changed := map[string]interface{}{}
		if req.FullName != nil {
			user.FullName = *req.FullName
			changed["fullName"] = *req.FullName
		}
		if req.Role != nil {
			user.Role = *req.Role
			changed["role"] = *req.Role
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
			changed["isActive"] = *req.IsActive
		}
		if req.Password != nil {
			hashed, err := hashPassword(*req.Password)
			if err != nil {
				return err
			}
			user.Password = hashed
			changed["password"] = "changed"
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		audit := newAudit(actor, model.ActionUpdateUser, user.ID.String(), user.Username, changed)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor Actor, id string) error {
	userID, err := parseID(id, "user")
	if err != nil {
		return err
	}
	if actor.UserID == userID.String() {
		return apperror.Validation("you cannot delete your own account")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, userID)
		if err != nil {
			return notFoundOr(err, "user")
		}
		if err := s.repo.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		audit := newAudit(actor, model.ActionDeleteUser, user.ID.String(), user.Username, nil)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}
