package storage

import (
	"os"

	"github.com/joho/godotenv"
)

type credentialsLogger interface {
	Panicf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type Credentials struct {
	telegramBotAPIToken string
	databaseDSN         string
	tradeGatewayKey     string
	logger              credentialsLogger
}

// NewCredentialsStorage reads secrets from the environment, loading a .env file first when one exists.
func NewCredentialsStorage(credentialsLogger credentialsLogger) *Credentials {
	credentials := Credentials{logger: credentialsLogger}

	if err := godotenv.Load(); err != nil {
		credentials.logger.Debugf("No .env file loaded: %v", err)
	}

	credentials.telegramBotAPIToken = credentials.getKeyFromEnv("TELEGRAM_BOT_API_TOKEN")
	credentials.databaseDSN = credentials.getKeyFromEnv("DATABASE_DSN")
	credentials.tradeGatewayKey = os.Getenv("TRADE_GATEWAY_KEY")

	return &credentials
}

func (credentials *Credentials) GetTelegramBotAPIToken() string {
	return credentials.telegramBotAPIToken
}

func (credentials *Credentials) GetDatabaseDSN() string {
	return credentials.databaseDSN
}

func (credentials *Credentials) GetTradeGatewayKey() string {
	return credentials.tradeGatewayKey
}

func (credentials *Credentials) getKeyFromEnv(keyName string) string {
	key := os.Getenv(keyName)
	if key == "" {
		credentials.logger.Panicf("Please set %s in system environment variables", keyName)
	}
	return key
}
