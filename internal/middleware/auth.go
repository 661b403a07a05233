package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/domain"
)

// IdentityKey 是已验证身份在 Gin 上下文中的键名
const IdentityKey = "identity"

// ErrMissingCredential 表示请求既没有 Authorization 头也没有 token 查询参数
var ErrMissingCredential = errors.New("missing credential")

// Auth 返回一个 Gin 中间件，用于验证 JWT 并把身份写入上下文。
// 凭证来源：Authorization: Bearer 头，或 token 查询参数
// （浏览器的 WebSocket 客户端无法自定义请求头）。
// 凭证缺失或无效时拒绝请求，WebSocket 升级因此不会发生。
func Auth(jwtSecret string) gin.HandlerFunc {
	// 在创建中间件时就进行检查，避免运行时 panic
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 提取凭证
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingCredential) {
				logrus.Warn("Auth middleware: Missing credential")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication credential is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed credential")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential format"})
			}
			c.Abort()
			return
		}

		// 2. 验证 Token
		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. 从 Claims 中提取身份并设置到 Context
		identity, err := identityFromClaims(claims)
		if err != nil {
			logrus.WithError(err).Error("Auth middleware: Invalid identity claims")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token processing error: invalid identity"})
			c.Abort()
			return
		}

		c.Set(IdentityKey, identity)
		logrus.WithField("user_id", identity.UserID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// IdentityFrom 从 Gin 上下文中取出已验证的身份。
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// extractToken 从 Authorization 头或 token 查询参数提取凭证
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", jwt.ErrTokenMalformed
		}
		return parts[1], nil
	}
	// WebSocket 握手路径：凭证通过查询参数传递
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingCredential
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法是否为 HMAC (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

// identityFromClaims 将 JWT Claims 转换为域身份对象
func identityFromClaims(claims jwt.MapClaims) (domain.Identity, error) {
	var identity domain.Identity

	userIDClaim, ok := claims["user_id"]
	if !ok {
		return identity, errors.New("'user_id' claim missing in token")
	}
	// JWT 数字默认为 float64，需要安全转换为 uint
	userIDFloat, ok := userIDClaim.(float64)
	if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
		return identity, fmt.Errorf("'user_id' claim is not a valid positive integer: %v", userIDClaim)
	}
	identity.UserID = uint(userIDFloat)

	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	return identity, nil
}
