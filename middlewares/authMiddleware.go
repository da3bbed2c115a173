package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware guards the /api group with a bearer JWT issued by the login
// handler. Unlike public routes, a missing or invalid token is a hard 401.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if claims, ok := validate.Claims.(*utils.JwtCustomClaim); ok {
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), claims.Username))
		}
		c.Next()
	}
}
