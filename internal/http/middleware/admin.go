package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminPasswordHeader — заголовок с общим паролем консоли оператора.
const AdminPasswordHeader = "X-Admin-Password"

// AdminMiddleware проверяет общий пароль консоли оператора.
// Это сознательно примитивная проверка: полноценная авторизация для
// консоли не предусмотрена, пароль один на всех операторов.
func AdminMiddleware(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(AdminPasswordHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(password)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "неверный пароль администратора",
			})
			return
		}
		c.Next()
	}
}
