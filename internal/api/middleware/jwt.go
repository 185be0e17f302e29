package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

// Permissions carried in session tokens.
const (
	// PermissionDispatch allows other platform services to create notifications.
	PermissionDispatch = "notifications:dispatch"
	// PermissionAdmin allows everything, including runtime log level changes.
	PermissionAdmin = "platform:admin"
)

// ticketAudience marks single-use websocket tickets, which are signed with
// the session key but never valid as API credentials.
const ticketAudience = "realtime"

// ErrJWTSigningKeyMissing is returned when no key is configured.
var ErrJWTSigningKeyMissing = errors.New("jwt signing key is not configured")

// JWTClaims are the session claims issued by the LearnHub identity service.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are previous keys still accepted during rotation.
	VerificationKeys [][]byte
	Issuer           string
	ExpiresIn        time.Duration
}

// GenerateToken creates a signed session JWT for the given user.
func GenerateToken(cfg JWTConfig, userID, name string, roles, permissions []string) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, ErrJWTSigningKeyMissing
	}
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := JWTClaims{
		UserID:      userID,
		Name:        name,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies signature, expiry and issuer, trying the current
// key first and then each verification key. Realtime tickets are rejected.
func (cfg JWTConfig) ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenUnverifiable, ErrJWTSigningKeyMissing)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		claims := &JWTClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, opts...)
		if err == nil {
			if slices.Contains(claims.Audience, ticketAudience) {
				return nil, fmt.Errorf("%w: realtime ticket", jwt.ErrTokenInvalidAudience)
			}
			if claims.UserID == "" {
				claims.UserID = claims.Subject
			}
			if claims.UserID == "" {
				return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
			}
			return claims, nil
		}
		lastErr = err
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	return nil, lastErr
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and populates context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, apperrors.CodeAuthFailed, "invalid authorization header format")
			return
		}

		claims, err := cfg.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, apperrors.CodeTokenExpired, "token expired")
				return
			}
			abortUnauthorized(c, apperrors.CodeTokenInvalid, "invalid token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Set("roles", claims.Roles)
		c.Set("permissions", claims.Permissions)
		c.Request = c.Request.WithContext(
			SetUserContext(c.Request.Context(), claims.UserID),
		)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    code,
		"message": message,
	})
}
