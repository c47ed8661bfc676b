package notify

import (
	"context"

	"github.com/ignatzorin/fire-report-backend/internal/models"
	"github.com/ignatzorin/fire-report-backend/internal/ws"
)

// ConsoleNotifier пушит новые сообщения в подключённые консоли операторов
// через WebSocket хаб.
type ConsoleNotifier struct {
	hub *ws.Hub
}

func NewConsoleNotifier(hub *ws.Hub) *ConsoleNotifier {
	return &ConsoleNotifier{hub: hub}
}

func (n *ConsoleNotifier) NotifyEmergency(_ context.Context, report *models.FireReport) error {
	return n.hub.Broadcast("new_report", report)
}
