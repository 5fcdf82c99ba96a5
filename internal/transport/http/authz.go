package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminPermission: право на административные операции с заказами.
const AdminPermission = "orders.admin"

const ctxSubject = "subject"

// AdminAuth проверяет Bearer JWT (HS256) на административных маршрутах.
// Токен должен содержать role=admin или право orders.admin в perms.
type AdminAuth struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewAdminAuth создаёт проверку; пустой secret отключает её (возвращается nil).
func NewAdminAuth(secret, issuer, audience string) *AdminAuth {
	if secret == "" {
		return nil
	}
	return &AdminAuth{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}
}

// Require возвращает gin middleware.
func (a *AdminAuth) Require() gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(c, "invalid_request", "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid_token", "invalid jwt")
			return
		}
		if !isAdmin(claims) {
			forbidden(c, "insufficient_scope", "admin role required")
			return
		}
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Set(ctxSubject, sub)
		}
		c.Next()
	}
}

func isAdmin(claims jwt.MapClaims) bool {
	if role, ok := claims["role"].(string); ok && role == "admin" {
		return true
	}
	perms, ok := claims["perms"].([]any)
	if !ok {
		return false
	}
	for _, p := range perms {
		if s, ok := p.(string); ok && s == AdminPermission {
			return true
		}
	}
	return false
}

func unauthorized(c *gin.Context, code, desc string) {
	challenge(c, http.StatusUnauthorized, code, desc)
}

func forbidden(c *gin.Context, code, desc string) {
	challenge(c, http.StatusForbidden, code, desc)
}

func challenge(c *gin.Context, status int, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(status, errorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    desc,
		Code:       code,
	})
}
