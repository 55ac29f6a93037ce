package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/extectick/appeals-backend/internal/core/ports"
)

// BotNotifier sends appeal notifications through the Telegram Bot API.
// Delivery is best-effort: failures are logged, never surfaced to the
// mutation that triggered them.
type BotNotifier struct {
	userRepo ports.UserRepository
	client   *http.Client
	apiURL   string
	logger   *slog.Logger
}

var _ ports.Notifier = (*BotNotifier)(nil)

// NewBotNotifier creates a notifier backed by the given bot token. It
// requires a UserRepository to resolve the recipient's telegram chat id.
func NewBotNotifier(botToken string, userRepo ports.UserRepository, logger *slog.Logger) *BotNotifier {
	return &BotNotifier{
		userRepo: userRepo,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken),
		logger:   logger.With("component", "telegram_notifier"),
	}
}

// Notify sends a direct message to the recipient's Telegram account.
func (n *BotNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	user, err := n.userRepo.GetByID(ctx, params.RecipientUserID)
	if err != nil {
		n.logger.Error("failed to get user for notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"chat_id": user.TelegramID,
		"text":    params.Subject + "\n\n" + params.Message,
	})
	if err != nil {
		n.logger.Error("failed to encode notification", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("failed to send telegram notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Error("telegram API rejected notification",
			"user_id", params.RecipientUserID,
			"status", resp.StatusCode,
		)
		return
	}

	n.logger.Info("notification sent",
		"to_name", user.FullName,
		"appeal_id", params.AppealID,
	)
}

// LogNotifier is a notifier that only logs. Used in local development
// where no bot token is configured.
type LogNotifier struct {
	userRepo ports.UserRepository
	logger   *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a logging-only notifier.
func NewLogNotifier(userRepo ports.UserRepository, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		userRepo: userRepo,
		logger:   logger.With("component", "telegram_notifier"),
	}
}

// Notify logs the notification instead of delivering it.
func (n *LogNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	user, err := n.userRepo.GetByID(ctx, params.RecipientUserID)
	if err != nil {
		n.logger.Error("failed to get user for notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}

	n.logger.Info("mock notification sent",
		"to_name", user.FullName,
		"telegram_id", user.TelegramID,
		"subject", params.Subject,
		"appeal_id", params.AppealID,
	)
}
