package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grading-service/internal/batch"
	"grading-service/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Config enables batch completion messages to one Telegram chat
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	// APIEndpoint overrides tgbotapi.APIEndpoint, mostly for tests
	APIEndpoint string `yaml:"api_endpoint"`
}

// Nop drops every notification
type Nop struct{}

func (Nop) JobFinished(context.Context, *models.Job) {}

// TelegramNotifier posts a summary when a batch job finishes
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New returns a Telegram notifier, or Nop when notifications are disabled
func New(cfg Config, logger *zap.Logger) (batch.Notifier, error) {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == 0 {
		logger.Info("Telegram notifications are disabled (telegram.enabled=false, token or chat id is empty)")
		return Nop{}, nil
	}
	return NewTelegramNotifier(cfg, http.DefaultClient, logger)
}

func NewTelegramNotifier(cfg Config, client *http.Client, logger *zap.Logger) (*TelegramNotifier, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	return &TelegramNotifier{
		api:    api,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

// JobFinished never fails the job; delivery errors are only logged
func (n *TelegramNotifier) JobFinished(_ context.Context, job *models.Job) {
	msg := tgbotapi.NewMessage(n.chatID, formatJob(job))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send Telegram notification", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	n.logger.Info("Telegram notification sent", zap.String("job_id", job.ID))
}

func formatJob(job *models.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Batch %s finished</b>\n", job.ID)
	fmt.Fprintf(&b, "Done: %d / %d\n", job.Completed, job.Total)
	fmt.Fprintf(&b, "Failed: %d\n", job.Failed)
	if job.StartedAt != nil && job.FinishedAt != nil {
		fmt.Fprintf(&b, "Took: %s\n", job.FinishedAt.Sub(*job.StartedAt).Round(time.Second))
	}

	var failed []string
	for _, t := range job.Items {
		if t.Status == models.TaskFailed {
			failed = append(failed, fmt.Sprintf("• %s: %s", escapeHTML(t.FileName), escapeHTML(t.Error)))
		}
	}
	if len(failed) > 0 {
		if len(failed) > 10 {
			failed = append(failed[:10], fmt.Sprintf("… and %d more", len(failed)-10))
		}
		b.WriteString("\n" + strings.Join(failed, "\n"))
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
