package validation

import (
	"math"
	"unicode/utf8"

	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxDescriptionLength = 500
	MinLatitude          = -90.0
	MaxLatitude          = 90.0
	MinLongitude         = -180.0
	MaxLongitude         = 180.0
)

// ValidateLocation проверяет, что координаты конечны и в допустимых пределах.
func ValidateLocation(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return apperror.ErrInvalidLocation
	}
	if lat < MinLatitude || lat > MaxLatitude {
		return apperror.ErrInvalidLocation
	}
	if lon < MinLongitude || lon > MaxLongitude {
		return apperror.ErrInvalidLocation
	}
	return nil
}

// ValidateDescription проверяет длину описания. Текст передаётся дальше
// без изменений: усечения нет, превышение лимита отклоняет запрос.
func ValidateDescription(description *string) error {
	if description == nil {
		return nil
	}
	if utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return apperror.ErrDescriptionTooLong
	}
	return nil
}
