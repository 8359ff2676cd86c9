package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			apperr.Respond(c, apperr.ErrUnauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			apperr.Respond(c, apperr.ErrUnauthorized("invalid Authorization header"))
			return
		}

		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			apperr.Respond(c, apperr.ErrUnauthorized(err.Error()))
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole: RequireAuth の後ろに置く
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if role == "" {
			apperr.Respond(c, apperr.ErrForbidden("missing role"))
			return
		}
		if _, allowed := roleSet[role]; !allowed {
			apperr.Respond(c, apperr.ErrForbidden("forbidden"))
			return
		}
		c.Next()
	}
}

// Librarian は有効時のみ認証+ロールチェックを差し込む．無効時は素通し
func Librarian(enabled bool, secret []byte) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	return []gin.HandlerFunc{RequireAuth(secret), RequireRole(RoleLibrarian, RoleAdmin)}
}
