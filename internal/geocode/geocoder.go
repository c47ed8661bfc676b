package geocode

import (
	"context"
	"fmt"
)

// Geocoder превращает координаты в человекочитаемый адрес.
// Любая ошибка геокодера не должна блокировать приём сообщения:
// вызывающий подставляет FallbackAddress.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// FallbackAddress — детерминированная подстановка адреса, когда геокодер
// недоступен или вернул ошибку.
func FallbackAddress(lat, lon float64) string {
	return fmt.Sprintf("Lat: %v, Lon: %v", lat, lon)
}

// Stub возвращает FallbackAddress для любых координат. Применяется в
// окружениях без внешнего геокодера и в тестах.
type Stub struct{}

func (Stub) ReverseGeocode(_ context.Context, lat, lon float64) (string, error) {
	return FallbackAddress(lat, lon), nil
}
