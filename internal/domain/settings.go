package domain

import (
	"context"
	"strconv"
	"strings"
)

// Setting keys read by the notifiers.
const (
	KeyTwilioEnabled    = "twilio_enabled"
	KeyTwilioAccountSID = "twilio_account_sid"
	KeyTwilioAuthToken  = "twilio_auth_token"
	KeyTwilioFromNumber = "twilio_from_number"
	KeyCallTimeout      = "call_timeout"
	KeyCallTemplate     = "call_template"
	KeyCallLanguage     = "call_language"
	KeyPhoneCountryCode = "phone_country_code"

	KeyChatEnabled            = "chat_enabled"
	KeyChatProvider           = "chat_provider"
	KeyLineChannelAccessToken = "line_channel_access_token"
	KeyTelegramBotToken       = "telegram_bot_token"
	KeyChatTemplate           = "chat_template"
)

// GlobalStoreID holds defaults that per-store rows override.
const GlobalStoreID int64 = 0

// Settings is the merged key/value configuration of one store.
type Settings map[string]string

func (s Settings) String(key, def string) string {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def
	}
	return v
}

func (s Settings) Bool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s[key])) {
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	}
	return def
}

func (s Settings) Int(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s[key]))
	if err != nil {
		return def
	}
	return n
}

type SettingsRepository interface {
	Load(ctx context.Context, storeID int64) (Settings, error)
	Set(ctx context.Context, storeID int64, key, value string) error
}
