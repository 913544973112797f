package services

import (
	"log/slog"

	"github.com/strideteam/competition-engine/events"
)

// Notification описывает одно событие жизненного цикла для доставки клиентам.
type Notification struct {
	Type          string         `json:"type"`
	CompetitionID int            `json:"competition_id"`
	Data          map[string]any `json:"data,omitempty"`
}

// Notifier доставляет уведомления best-effort: отправка никогда не блокирует
// и не откатывает расчёт, который её породил.
type Notifier interface {
	Notify(n Notification)
}

// FeedNotifier пересылает уведомления в WebSocket-хаб: в комнату соревнования
// и в общую ленту. Очередь буферизована; при переполнении события
// отбрасываются с записью в лог.
type FeedNotifier struct {
	hub    *events.Hub
	queue  chan Notification
	logger *slog.Logger
}

func NewFeedNotifier(hub *events.Hub, logger *slog.Logger) *FeedNotifier {
	return &FeedNotifier{
		hub:    hub,
		queue:  make(chan Notification, 256),
		logger: logger,
	}
}

// Start запускает воркер доставки. Вызывается один раз при старте приложения.
func (f *FeedNotifier) Start() {
	go func() {
		for n := range f.queue {
			msg := events.Message{
				Type:    n.Type,
				Payload: n.Data,
				RoomID:  events.CompetitionRoom(n.CompetitionID),
			}
			f.hub.BroadcastToRoom(msg.RoomID, msg)
			f.hub.BroadcastToRoom(events.FeedRoom, msg)
		}
	}()
}

func (f *FeedNotifier) Notify(n Notification) {
	select {
	case f.queue <- n:
	default:
		f.logger.Warn("notification queue full, dropping event",
			slog.String("type", n.Type),
			slog.Int("competition_id", n.CompetitionID))
	}
}

// NopNotifier используется в тестах и в конфигурациях без WebSocket.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
