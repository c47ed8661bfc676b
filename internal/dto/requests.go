package dto

// FireReportRequest — JSON-часть "data" multipart-запроса POST /api/fire-reports.
// Координаты — указатели, чтобы отличать отсутствующее поле от нулевого
// значения (экватор и нулевой меридиан — валидные координаты).
type FireReportRequest struct {
	Latitude      *float64 `json:"latitude" binding:"required"`
	Longitude     *float64 `json:"longitude" binding:"required"`
	Description   *string  `json:"description"`
	ReporterPhone *string  `json:"reporterPhone"`
	UrgencyLevel  string   `json:"urgencyLevel"`
}
