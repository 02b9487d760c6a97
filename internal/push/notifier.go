package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
	"github.com/weichenlin/twchip/pkg/config"
	"github.com/weichenlin/twchip/pkg/logger"
)

// ErrNoTargets is returned when a push is requested with no chat IDs configured.
var ErrNoTargets = errors.New("push: no chat targets configured")

// Sender delivers a message to a single Telegram recipient. *tele.Bot
// satisfies it; tests inject a fake.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// PushLogger records per-target delivery outcomes. The report repository
// satisfies it.
type PushLogger interface {
	SavePushLog(ctx context.Context, log report.PushLog) error
	MarkPushed(ctx context.Context, date market.TradeDate) error
}

var _ PushLogger = (*report.Repository)(nil)

// Notifier pushes formatted reports to the configured Telegram chats.
type Notifier struct {
	sender  Sender
	chatIDs []int64
	logs    PushLogger
	log     zerolog.Logger
}

// New builds a Notifier around an already-connected bot. logs may be nil
// when delivery bookkeeping is not wanted (ad-hoc CLI sends).
func New(sender Sender, cfg *config.Config, logs PushLogger) *Notifier {
	return &Notifier{
		sender:  sender,
		chatIDs: cfg.Telegram.ChatIDs,
		logs:    logs,
		log:     logger.With("push"),
	}
}

// NewBot connects a Telegram bot with the configured token.
func NewBot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Telegram.Token == "" {
		return nil, errors.New("push: TELEGRAM_TOKEN is not set")
	}
	return tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
}

// PushRecord formats the record and delivers it to every configured chat.
// A failure on one target does not stop delivery to the rest; the record
// is marked pushed when at least one target received it.
func (n *Notifier) PushRecord(ctx context.Context, rec *market.ChipRecord, view report.View) error {
	if len(n.chatIDs) == 0 {
		return ErrNoTargets
	}

	text := report.Format(rec, view)

	var delivered int
	for _, chatID := range n.chatIDs {
		err := n.send(chatID, text)
		if err != nil {
			n.log.Error().Err(err).Int64("chat_id", chatID).
				Str("date", rec.TradeDate.String()).
				Msg("Failed to push report")
		} else {
			delivered++
			n.log.Info().Int64("chat_id", chatID).
				Str("date", rec.TradeDate.String()).
				Msg("Report pushed")
		}
		n.recordOutcome(ctx, rec.TradeDate, chatID, view, err)
	}

	if delivered == 0 {
		return fmt.Errorf("push: all %d targets failed", len(n.chatIDs))
	}
	if n.logs != nil {
		if err := n.logs.MarkPushed(ctx, rec.TradeDate); err != nil {
			n.log.Error().Err(err).Str("date", rec.TradeDate.String()).
				Msg("Failed to mark record pushed")
		}
	}
	return nil
}

// Broadcast sends a plain text message to every configured chat.
func (n *Notifier) Broadcast(text string) error {
	if len(n.chatIDs) == 0 {
		return ErrNoTargets
	}
	var delivered int
	for _, chatID := range n.chatIDs {
		if err := n.send(chatID, text); err != nil {
			n.log.Error().Err(err).Int64("chat_id", chatID).Msg("Broadcast failed")
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("push: all %d targets failed", len(n.chatIDs))
	}
	return nil
}

func (n *Notifier) send(chatID int64, text string) error {
	_, err := n.sender.Send(&tele.User{ID: chatID}, text)
	return err
}

func (n *Notifier) recordOutcome(ctx context.Context, date market.TradeDate, chatID int64, view report.View, sendErr error) {
	if n.logs == nil {
		return
	}
	entry := report.PushLog{
		TradeDate: date,
		Target:    fmt.Sprintf("%d", chatID),
		View:      view,
		Success:   sendErr == nil,
		PushedAt:  time.Now(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := n.logs.SavePushLog(ctx, entry); err != nil {
		n.log.Error().Err(err).Msg("Failed to save push log")
	}
}
