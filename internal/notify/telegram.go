package notify

import (
	"campusbook/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes short operational alerts to the admin chats.
// A notifier built without a bot token swallows messages, so callers never
// need to branch on whether telegram is configured.
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	childLogger := logger.With().Str("component", "notifier").Logger()
	n := &TelegramNotifier{
		chatIDs: cfg.AdminChatIDs,
		logger:  &childLogger,
	}

	if cfg.BotToken == "" {
		childLogger.Info().Msg("Telegram token is empty, admin alerts disabled")
		return n, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	botAPI.Debug = cfg.Debug

	childLogger.Info().Str("username", botAPI.Self.UserName).Msg("Authorized on account")
	n.bot = botAPI
	return n, nil
}

func (n *TelegramNotifier) NotifyAdmins(text string) {
	if n == nil || n.bot == nil || text == "" {
		return
	}

	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send admin alert")
		}
	}
}
