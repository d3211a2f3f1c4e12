package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/model"
)

type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
}

type jwtService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &jwtService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: "emr-api",
	}
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  string(user.Role),
		"iss":   s.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.expiry).Unix(),
	}
	if user.PatientID != nil {
		claims["patient_id"] = user.PatientID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtService) ValidateToken(tokenStr string) (*model.TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	tc := &model.TokenClaims{
		UserID: userID,
		Email:  stringClaim(claims, "email"),
		Role:   model.Role(stringClaim(claims, "role")),
	}
	if pid := stringClaim(claims, "patient_id"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("invalid patient_id claim: %w", err)
		}
		tc.PatientID = &patientID
	}
	return tc, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
