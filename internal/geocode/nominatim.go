package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// NominatimClient — reverse geocoding через Nominatim API (OpenStreetMap).
type NominatimClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewNominatimClient создаёт клиент Nominatim с ограничением по времени.
func NewNominatimClient(baseURL string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Nominatim требует осмысленный User-Agent от сервисов.
		userAgent: "fire-report-backend/1.0",
	}
}

// ReverseGeocode возвращает адрес для координат.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {fmt.Sprintf("%.6f", lat)},
		"lon":    {fmt.Sprintf("%.6f", lon)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("geocode: создание запроса: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode: запрос reverse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("geocode: nominatim вернул статус %d: %s", resp.StatusCode, body)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("geocode: разбор ответа: %w", err)
	}

	if payload.DisplayName == "" {
		return "", fmt.Errorf("geocode: пустой ответ для координат %.6f, %.6f", lat, lon)
	}

	return payload.DisplayName, nil
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}
