package builtin

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/config"
)

// TelegramAction sends a sendTelegram node's message via the Telegram Bot
// API. The bot token comes from the node's credential, which is
// mandatory.
type TelegramAction struct {
	*action.BaseAction
}

func NewTelegramAction() *TelegramAction {
	return &TelegramAction{BaseAction: action.NewBaseAction("sendTelegram")}
}

func (a *TelegramAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	c, err := config.ParseConfig[config.TelegramConfig](cfg)
	if err != nil {
		return action.Result{Error: err.Error()}
	}
	if err := c.Validate(); err != nil {
		return action.Result{Error: err.Error()}
	}

	cred, ok := services.GetCredential(ctx, c.CredentialID)
	if !ok {
		return action.Result{Error: "Failed to decrypt data"}
	}
	botToken, _ := cred["botToken"].(string)
	if botToken == "" {
		return action.Result{Error: "telegram credential missing botToken"}
	}

	chatID, err := strconv.ParseInt(c.ChatID, 10, 64)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("invalid chatId: %v", err)}
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to init telegram bot: %v", err)}
	}

	msg := tgbotapi.NewMessage(chatID, c.Message)
	sent, err := bot.Send(msg)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to send telegram message: %v", err)}
	}

	return action.Result{
		Success: true,
		Output: map[string]interface{}{
			"messageId": sent.MessageID,
			"chatId":    sent.Chat.ID,
		},
	}
}

func (a *TelegramAction) Validate(cfg map[string]interface{}) error {
	c, err := config.ParseConfig[config.TelegramConfig](cfg)
	if err != nil {
		return err
	}
	return c.Validate()
}
