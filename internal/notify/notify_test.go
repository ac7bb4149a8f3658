package notify

import (
	"errors"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"feedwatch/internal/model"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		n    model.Notification
		want string
	}{
		{
			name: "subject and body",
			n: model.Notification{
				Sender:  "DevOps Weekly",
				Subject: "Kubernetes 1.33 released",
				Body:    "Highlights from the release.\nhttps://example.com/k8s",
			},
			want: "[DevOps Weekly]\n\nKubernetes 1.33 released\n\nHighlights from the release.\nhttps://example.com/k8s",
		},
		{
			name: "subject only",
			n: model.Notification{
				Sender:  "releases",
				Subject: "3 new entries",
			},
			want: "[releases]\n\n3 new entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Format(tt.n)); diff != "" {
				t.Errorf("Format() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func newTestTelegram(api telegramAPI, chatID int64) *Telegram {
	tg := newTelegram(api, chatID, slog.Default())
	tg.rateLimit = 0
	return tg
}

func TestTelegramSend(t *testing.T) {
	api := &fakeAPI{}
	tg := newTestTelegram(api, 100)

	err := tg.Send(model.Notification{Sender: "s", Subject: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	msg := api.sent[0]
	if msg.ChatID != 100 {
		t.Errorf("chat id = %d, want 100", msg.ChatID)
	}
	if msg.Text != "[s]\n\nhello" {
		t.Errorf("text = %q", msg.Text)
	}
	if !msg.DisableWebPagePreview {
		t.Error("web page preview should be disabled")
	}
}

func TestTelegramSendDestinationOverride(t *testing.T) {
	api := &fakeAPI{}
	tg := newTestTelegram(api, 100)

	err := tg.Send(model.Notification{Sender: "s", Subject: "hi", Destination: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.sent[0].ChatID != 200 {
		t.Errorf("chat id = %d, want 200", api.sent[0].ChatID)
	}
}

func TestTelegramSendError(t *testing.T) {
	api := &fakeAPI{err: errors.New("flood control")}
	tg := newTestTelegram(api, 100)

	if err := tg.Send(model.Notification{Subject: "hi"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
