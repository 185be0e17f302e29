package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

func TestJWTConfigValidateToken_Success(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "learnhub",
		ExpiresIn:  time.Hour,
	}

	token, _, err := GenerateToken(cfg, "student-1", "Ada", []string{"student"}, nil)
	require.NoError(t, err)

	claims, err := cfg.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.NotBefore)
}

func TestJWTConfigValidateToken_RejectsInvalidIssuer(t *testing.T) {
	issuerCfg := JWTConfig{
		SigningKey: []byte("issuer-key-123456789012345678901234"),
		Issuer:     "learnhub",
		ExpiresIn:  time.Hour,
	}
	token, _, err := GenerateToken(issuerCfg, "u-1", "", nil, nil)
	require.NoError(t, err)

	_, err = JWTConfig{SigningKey: issuerCfg.SigningKey, Issuer: "other-issuer"}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTConfigValidateToken_SupportsVerificationKeyRotation(t *testing.T) {
	oldKey := []byte("old-key-123456789012345678901234567890")
	newKey := []byte("new-key-123456789012345678901234567890")

	token, _, err := GenerateToken(JWTConfig{
		SigningKey: oldKey,
		Issuer:     "learnhub",
		ExpiresIn:  time.Hour,
	}, "u-1", "", nil, nil)
	require.NoError(t, err)

	claims, err := JWTConfig{
		SigningKey:       newKey,
		VerificationKeys: [][]byte{oldKey},
		Issuer:           "learnhub",
	}.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	_, err = JWTConfig{SigningKey: newKey, Issuer: "learnhub"}.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTConfigValidateToken_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "learnhub",
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = JWTConfig{
		SigningKey: []byte("signing-key-123456789012345678901234"),
		Issuer:     "learnhub",
	}.ValidateToken(tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTConfigValidateToken_SubjectFallback(t *testing.T) {
	key := []byte("subject-key-1234567890123456789012345")
	now := time.Now()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "parent-7",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(key)
	require.NoError(t, err)

	claims, err := JWTConfig{SigningKey: key}.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "parent-7", claims.UserID)
}

func TestJWTConfigValidateToken_RejectsRealtimeTicket(t *testing.T) {
	cfg := JWTConfig{SigningKey: []byte("ticket-key-1234567890123456789012345"), Issuer: "learnhub"}
	now := time.Now()
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "t-1",
			Issuer:    "learnhub",
			Subject:   "student-1",
			Audience:  jwt.ClaimStrings{"realtime"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}).SignedString(cfg.SigningKey)
	require.NoError(t, err)

	_, err = cfg.ValidateToken(ticket)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", JWTAuth(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+ticket)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTConfigValidateToken_RequiresSigningKey(t *testing.T) {
	token, _, err := GenerateToken(JWTConfig{
		SigningKey: []byte("key-to-sign-valid-token-1234567890123456"),
		ExpiresIn:  time.Hour,
	}, "u-1", "", nil, nil)
	require.NoError(t, err)

	_, err = JWTConfig{}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenUnverifiable)
	assert.ErrorIs(t, err, ErrJWTSigningKeyMissing)
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("middleware-key-12345678901234567890"),
		Issuer:     "learnhub",
		ExpiresIn:  time.Hour,
	}
	valid, _, err := GenerateToken(cfg, "teacher-3", "Grace", []string{"teacher"}, []string{PermissionDispatch})
	require.NoError(t, err)
	expired, _, err := GenerateToken(JWTConfig{SigningKey: cfg.SigningKey, Issuer: cfg.Issuer, ExpiresIn: -time.Minute},
		"teacher-3", "", nil, nil)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(cfg))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":     GetUserID(c.Request.Context()),
			"name":        c.GetString("user_name"),
			"permissions": c.GetStringSlice("permissions"),
		})
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, apperrors.CodeAuthFailed},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, apperrors.CodeAuthFailed},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, apperrors.CodeTokenInvalid},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, apperrors.CodeTokenExpired},
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)

			require.Equal(t, tc.wantCode, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, body["code"])
				return
			}
			assert.Equal(t, "teacher-3", body["user_id"])
			assert.Equal(t, "Grace", body["name"])
			assert.Equal(t, []any{PermissionDispatch}, body["permissions"])
		})
	}
}
