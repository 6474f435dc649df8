package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

func Send(ctx context.Context, botToken string, chatIDs []int64, message string) error {
	b, err := bot.New(botToken)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	for _, chatID := range chatIDs {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   message,
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
		}
	}
	return nil
}
