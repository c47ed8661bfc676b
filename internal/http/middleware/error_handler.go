package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/fire-report-backend/internal/dto"
	"github.com/ignatzorin/fire-report-backend/internal/logger"
	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
)

// ErrorHandler переводит ошибки, сложенные handler-ами через c.Error,
// в конверт ответа. Маскирует внутренние ошибки и возвращает понятные
// сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Ответ уже отправлен обычным путём.
		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		var appErr *apperror.AppError
		if errors.As(err.Err, &appErr) {
			statusCode = appErr.HTTPStatus
			message = appErr.Message
			if appErr.Code == apperror.ErrCodeDatabaseError || appErr.Code == apperror.ErrCodeInternal {
				// Внутренние детали наружу не отдаём.
				message = "внутренняя ошибка сервера"
			}
		} else if err.Error() != "" && !containsInternalKeywords(err.Error()) {
			message = err.Error()
			statusCode = http.StatusBadRequest
		}

		c.JSON(statusCode, dto.Fail(message))
	}
}

// containsInternalKeywords проверяет, содержит ли строка признаки внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	lowered := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
