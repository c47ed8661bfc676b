package dto

import (
	"time"

	"github.com/ignatzorin/fire-report-backend/internal/models"
)

// FireReportResponse — конверт ответа API.
type FireReportResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	ReportID *int64      `json:"reportId"`
	Data     *ReportData `json:"data,omitempty"`
}

// ReportData — проекция сообщения, отдаваемая наружу.
// Все отсутствующие опциональные поля сериализуются как null.
type ReportData struct {
	ID            int64     `json:"id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Description   *string   `json:"description"`
	PhotoURL      *string   `json:"photoUrl"`
	ReporterPhone *string   `json:"reporterPhone"`
	ReportedAt    time.Time `json:"reportedAt"`
	Status        string    `json:"status"`
	Address       *string   `json:"address"`
	UrgencyLevel  string    `json:"urgencyLevel"`
}

// NewReportData собирает проекцию из доменной модели.
func NewReportData(report *models.FireReport) *ReportData {
	return &ReportData{
		ID:            report.ID,
		Latitude:      report.Latitude,
		Longitude:     report.Longitude,
		Description:   report.Description,
		PhotoURL:      report.PhotoURL,
		ReporterPhone: report.ReporterPhone,
		ReportedAt:    report.ReportedAt,
		Status:        string(report.Status),
		Address:       report.Address,
		UrgencyLevel:  string(report.UrgencyLevel),
	}
}

// NewReportDataList собирает список проекций.
func NewReportDataList(reports []models.FireReport) []ReportData {
	out := make([]ReportData, 0, len(reports))
	for i := range reports {
		out = append(out, *NewReportData(&reports[i]))
	}
	return out
}

// OK строит успешный конверт с данными сообщения.
func OK(message string, report *models.FireReport) FireReportResponse {
	id := report.ID
	return FireReportResponse{
		Success:  true,
		Message:  message,
		ReportID: &id,
		Data:     NewReportData(report),
	}
}

// Fail строит конверт ошибки без данных.
func Fail(message string) FireReportResponse {
	return FireReportResponse{
		Success: false,
		Message: message,
	}
}
