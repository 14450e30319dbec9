package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/interfaces/http/response"
)

// Context keys set by Authenticate
const (
	ContextKeyOperatorID = "operator_id"
	ContextKeyJTI        = "jti"
	ContextKeyRole       = "role"
)

// JWTClaims represents the operator token claims. Subject carries the operator id
// and ID the token id used for revocation.
type JWTClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTMiddleware handles JWT validation and revocation checking
type JWTMiddleware struct {
	secret          []byte
	issuer          string
	blocklist       redis.UniversalClient
	accessTTL       time.Duration
	blocklistPrefix string
	logger          *zap.Logger
}

// NewJWTMiddleware creates a new JWT middleware
func NewJWTMiddleware(cfg config.JWTConfig, redisClient redis.UniversalClient) *JWTMiddleware {
	return &JWTMiddleware{
		secret:          []byte(cfg.Secret),
		issuer:          cfg.Issuer,
		blocklist:       redisClient,
		accessTTL:       cfg.AccessTTL,
		blocklistPrefix: "jwt:blocked:",
		logger:          logging.WithComponent("jwt"),
	}
}

// Authenticate validates the bearer token and sets the operator context
func (j *JWTMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Missing authorization header")
			c.Abort()
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || tokenString == "" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := j.ParseToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		revoked, err := j.blocklist.Exists(c.Request.Context(), j.blocklistPrefix+claims.ID).Result()
		if err != nil {
			j.logger.Error("failed to check token blocklist", zap.Error(err))
			// Fail closed
			response.ServiceUnavailable(c, "Token validation unavailable")
			c.Abort()
			return
		}
		if revoked > 0 {
			response.Error(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
			c.Abort()
			return
		}

		c.Set(ContextKeyOperatorID, claims.Subject)
		c.Set(ContextKeyJTI, claims.ID)
		if claims.Role != "" {
			c.Set(ContextKeyRole, claims.Role)
		}

		c.Next()
	}
}

// GenerateAccessToken creates a signed token for an operator and returns it with its id
func (j *JWTMiddleware) GenerateAccessToken(operatorID, role string) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := &JWTClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
			Issuer:    j.issuer,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", "", err
	}
	return tokenString, jti, nil
}

// ParseToken parses a token string and returns the claims without checking the blocklist
func (j *JWTMiddleware) ParseToken(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" {
		return nil, errors.New("token has no id")
	}
	return claims, nil
}

// RevokeToken adds a token to the blocklist
func (j *JWTMiddleware) RevokeToken(ctx context.Context, jti string, remainingTTL time.Duration) error {
	return j.blocklist.Set(ctx, j.blocklistPrefix+jti, "1", remainingTTL).Err()
}
