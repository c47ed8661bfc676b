package notify

import (
	"context"

	"github.com/ignatzorin/fire-report-backend/internal/logger"
	"github.com/ignatzorin/fire-report-backend/internal/models"
)

// Notifier выполняет best-effort оповещение о новом сообщении.
// Ошибки оповещения никогда не доходят до отправителя сообщения:
// запись уже сохранена, оповещение вторично.
type Notifier interface {
	NotifyEmergency(ctx context.Context, report *models.FireReport) error
}

// Multi рассылает оповещение всем вложенным нотификаторам.
// Отказ одного не прерывает остальных; ошибки только логируются.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) NotifyEmergency(ctx context.Context, report *models.FireReport) error {
	for _, n := range m.notifiers {
		if err := n.NotifyEmergency(ctx, report); err != nil {
			logger.WithComponent("notify").WithError(err).
				WithField("report_id", report.ID).
				Error("оповещение не доставлено")
		}
	}
	return nil
}
