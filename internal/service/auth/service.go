package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
	"github.com/aymanebs/emr-api/pkg/auth"
	apperrors "github.com/aymanebs/emr-api/pkg/errors"
	"github.com/aymanebs/emr-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
	Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error)
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	expiry   time.Duration
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, expiry time.Duration) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		expiry:   expiry,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.expiry.Seconds()),
		Role:        user.Role,
	}, nil
}

func (s *Service) Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown role %q", req.Role), nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
	}

	// Patient accounts are bound to their own record; that binding is the
	// subject of every operation they perform.
	if req.Role == model.RolePatient {
		if req.PatientID == "" {
			return nil, apperrors.BadRequest("patient accounts require a patient_id", nil)
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			return nil, apperrors.BadRequest("invalid patient_id", err)
		}
		user.PatientID = &patientID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}
