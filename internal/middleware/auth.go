package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aymanebs/emr-api/internal/handler"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/service/auth"
)

const (
	// HeaderSessionID carries the browser session key that scopes the
	// active patient and last selection.
	HeaderSessionID = "X-Session-ID"

	contextOperator = "operator"
)

type AuthMiddleware struct {
	authService auth.AuthService
}

func NewAuthMiddleware(authService auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate verifies the JWT token and sets the operator context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		sessionID := c.GetHeader(HeaderSessionID)
		if sessionID == "" {
			// Without an explicit session the user id scopes the state,
			// which keeps single-tab operators working.
			sessionID = claims.UserID.String()
		}

		c.Set(contextOperator, &model.OperatorContext{
			SessionID: sessionID,
			UserID:    claims.UserID,
			Role:      claims.Role,
			PatientID: claims.PatientID,
		})
		c.Next()
	}
}

// RequireRoles aborts unless the operator has one of the given roles.
func (m *AuthMiddleware) RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := OperatorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if op.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("insufficient role"))
		c.Abort()
	}
}

// OperatorFrom extracts the operator context set by Authenticate.
func OperatorFrom(c *gin.Context) (*model.OperatorContext, bool) {
	v, exists := c.Get(contextOperator)
	if !exists {
		return nil, false
	}
	op, ok := v.(*model.OperatorContext)
	return op, ok
}
