package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/legendiguess/pumpdump-trade-bot/domain"
)

type ordersCanceller interface {
	Cancel(ctx context.Context, id string, ownerID string) (domain.Order, error)
}

type telegramBotCredentials interface {
	GetTelegramBotAPIToken() string
}

type telegramBotLogger interface {
	Panic(args ...interface{})
	Printf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramBot is the Notifier. It also accepts /cancel from order owners.
type TelegramBot struct {
	bot    *tgbotapi.BotAPI
	sender messageSender
	orders ordersCanceller
	logger telegramBotLogger
}

func NewTelegramBot(orders ordersCanceller, telegramBotCredentials telegramBotCredentials, telegramBotLogger telegramBotLogger) *TelegramBot {
	telegramBot := TelegramBot{orders: orders, logger: telegramBotLogger}

	var err error

	telegramBot.bot, err = tgbotapi.NewBotAPI(telegramBotCredentials.GetTelegramBotAPIToken())
	if err != nil {
		telegramBot.logger.Panic(err)
	}
	telegramBot.sender = telegramBot.bot

	return &telegramBot
}

// Run answers commands until ctx is cancelled.
func (telegramBot *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10

	updates := telegramBot.bot.GetUpdatesChan(u)
	defer telegramBot.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			reply := telegramBot.handleCommand(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())
			if reply == "" {
				continue
			}
			if _, err := telegramBot.sender.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
				telegramBot.logger.Warnf("Reply to %d failed: %v", update.Message.Chat.ID, err)
			}
		}
	}
}

func (telegramBot *TelegramBot) handleCommand(ctx context.Context, chatID int64, command string, arguments string) string {
	switch command {
	case "start":
		return fmt.Sprintf("You will receive order notifications here 👍\nYour user id: %d", chatID)
	case "cancel":
		orderID := strings.TrimSpace(arguments)
		if orderID == "" {
			return "Usage: /cancel <order_id>"
		}

		order, err := telegramBot.orders.Cancel(ctx, orderID, strconv.FormatInt(chatID, 10))
		switch {
		case err == nil:
			return fmt.Sprintf("🛑 Order %s cancelled", order.ID)
		case errors.Is(err, ErrOrderNotActive):
			return fmt.Sprintf("Order %s is no longer active", orderID)
		default:
			telegramBot.logger.Printf("Cancel %s for %d failed: %v", orderID, chatID, err)
			return fmt.Sprintf("Order %s not found", orderID)
		}
	default:
		return ""
	}
}

// Notify sends text to the chat whose id is userID.
func (telegramBot *TelegramBot) Notify(ctx context.Context, userID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not a chat id: %w", userID, err)
	}

	_, err = telegramBot.sender.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
