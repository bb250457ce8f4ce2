package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/infrastructure/twilio"
)

const (
	DefaultCallTemplate = "{name}さん、{time}に退室予定です。準備をお願いします。"
	DefaultChatTemplate = "{name}さん、{worker}さんが{time}に退室予定です（{hotel}）"
	DefaultCallLanguage = "ja-JP"
	DefaultCallTimeout  = 30

	ProviderLine     = "line"
	ProviderTelegram = "telegram"
)

// Notifier delivers one message for one event. It reports failures in the
// result and never returns an error or panics on provider failure.
type Notifier interface {
	Notify(ctx context.Context, ev *domain.PickupEvent) domain.SendResult
}

type SettingsLoader interface {
	Load(ctx context.Context, storeID int64) (domain.Settings, error)
}

type VoiceCaller interface {
	Call(ctx context.Context, creds twilio.Credentials, call twilio.Call) (string, error)
}

type ChatPusher interface {
	Push(ctx context.Context, token, to, text string) error
}

// CallNotifier phones the assigned worker.
type CallNotifier struct {
	settings SettingsLoader
	caller   VoiceCaller
	loc      *time.Location
}

func NewCallNotifier(settings SettingsLoader, caller VoiceCaller, loc *time.Location) *CallNotifier {
	return &CallNotifier{
		settings: settings,
		caller:   caller,
		loc:      loc,
	}
}

func (n *CallNotifier) Notify(ctx context.Context, ev *domain.PickupEvent) domain.SendResult {
	if ev.Worker == nil || strings.TrimSpace(ev.Worker.Phone) == "" {
		return domain.Failed(domain.ErrNoRecipient)
	}

	cfg, err := n.settings.Load(ctx, ev.StoreID)
	if err != nil {
		return domain.Failed(fmt.Errorf("load settings: %w", err))
	}
	if !cfg.Bool(domain.KeyTwilioEnabled, false) {
		return domain.Failed(fmt.Errorf("%w: %s", domain.ErrChannelDisabled, domain.KeyTwilioEnabled))
	}

	creds := twilio.Credentials{
		AccountSID: cfg.String(domain.KeyTwilioAccountSID, ""),
		AuthToken:  cfg.String(domain.KeyTwilioAuthToken, ""),
		From:       cfg.String(domain.KeyTwilioFromNumber, ""),
	}
	if creds.AccountSID == "" || creds.AuthToken == "" || creds.From == "" {
		return domain.Failed(fmt.Errorf("%w: twilio", domain.ErrMissingCredentials))
	}

	to := NormalizePhone(ev.Worker.Phone, cfg.String(domain.KeyPhoneCountryCode, DefaultCountryCode))
	msg := RenderTemplate(
		cfg.String(domain.KeyCallTemplate, DefaultCallTemplate),
		messageValues(ev.Worker.Name, formatClock(ev.ExitAt, n.loc), ev.HotelName),
	)

	sid, err := n.caller.Call(ctx, creds, twilio.Call{
		To:       to,
		Message:  msg,
		Language: cfg.String(domain.KeyCallLanguage, DefaultCallLanguage),
		Timeout:  cfg.Int(domain.KeyCallTimeout, DefaultCallTimeout),
	})
	if err != nil {
		return domain.Failed(err)
	}
	return domain.Sent(sid)
}

// MessageNotifier pushes a chat message to the assigned staff member through
// the store's chat provider.
type MessageNotifier struct {
	settings  SettingsLoader
	providers map[string]ChatPusher
	loc       *time.Location
}

func NewMessageNotifier(settings SettingsLoader, providers map[string]ChatPusher, loc *time.Location) *MessageNotifier {
	return &MessageNotifier{
		settings:  settings,
		providers: providers,
		loc:       loc,
	}
}

var providerTokenKeys = map[string]string{
	ProviderLine:     domain.KeyLineChannelAccessToken,
	ProviderTelegram: domain.KeyTelegramBotToken,
}

func (n *MessageNotifier) Notify(ctx context.Context, ev *domain.PickupEvent) domain.SendResult {
	if ev.Staff == nil || strings.TrimSpace(ev.Staff.ChatID) == "" {
		return domain.Failed(domain.ErrNoRecipient)
	}

	cfg, err := n.settings.Load(ctx, ev.StoreID)
	if err != nil {
		return domain.Failed(fmt.Errorf("load settings: %w", err))
	}
	if !cfg.Bool(domain.KeyChatEnabled, false) {
		return domain.Failed(fmt.Errorf("%w: %s", domain.ErrChannelDisabled, domain.KeyChatEnabled))
	}

	provider := strings.ToLower(cfg.String(domain.KeyChatProvider, ProviderLine))
	pusher, ok := n.providers[provider]
	tokenKey, known := providerTokenKeys[provider]
	if !ok || !known {
		return domain.Failed(fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider))
	}
	token := cfg.String(tokenKey, "")
	if token == "" {
		return domain.Failed(fmt.Errorf("%w: %s", domain.ErrMissingCredentials, provider))
	}

	values := messageValues(ev.Staff.Name, formatClock(ev.ExitAt, n.loc), ev.HotelName)
	values["worker"] = ""
	if ev.Worker != nil {
		values["worker"] = ev.Worker.Name
	}
	msg := RenderTemplate(cfg.String(domain.KeyChatTemplate, DefaultChatTemplate), values)

	if err := pusher.Push(ctx, token, ev.Staff.ChatID, msg); err != nil {
		return domain.Failed(err)
	}
	return domain.Sent("")
}

func formatClock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}
