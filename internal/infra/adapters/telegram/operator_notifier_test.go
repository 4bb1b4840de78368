//go:build !integration

package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/infra/i18n"
	"chat-subscription-payments/internal/infra/worker"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	failFor map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := c.(tgbotapi.MessageConfig)
	if f.failFor[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func sampleUnresolved() *model.UnresolvedPayment {
	return &model.UnresolvedPayment{
		ID:         "01HV6J9Q7X3B2C1D0E9F8G7H6J",
		Amount:     150000,
		ReceivedAt: time.Date(2025, 3, 14, 3, 0, 0, 0, time.UTC),
		PotentialReferences: []model.CandidateReference{
			{Ref: "TXNQ4R8M", Method: "bank_content_format", Priority: 1},
		},
	}
}

func TestOperatorNotifier_NotifyUnresolved(t *testing.T) {
	// --- Arrange ---
	bot := &fakeSender{failFor: map[int64]bool{222: true}}
	n := newOperatorNotifier(bot, []int64{111, 222, 333}, nil, testLogger())

	// --- Act ---
	err := n.NotifyUnresolved(context.Background(), sampleUnresolved())

	// --- Assert ---
	require.Error(t, err)
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(111), bot.sent[0].ChatID)
	assert.Equal(t, int64(333), bot.sent[1].ChatID)
	assert.Contains(t, bot.sent[0].Text, "01HV6J9Q7X3B2C1D0E9F8G7H6J")
	assert.Contains(t, bot.sent[0].Text, "Amount: 150000")
	assert.Contains(t, bot.sent[0].Text, "2025-03-14 10:00:00 +07:00")
	assert.Contains(t, bot.sent[0].Text, "1. TXNQ4R8M (bank_content_format)")
}

func TestOperatorNotifier_Localized(t *testing.T) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "vi")
	require.NoError(t, err)
	bot := &fakeSender{}
	n := newOperatorNotifier(bot, []int64{111}, tr, testLogger())

	u := sampleUnresolved()
	u.PotentialReferences = nil
	require.NoError(t, n.NotifyUnresolved(context.Background(), u))

	require.Len(t, bot.sent, 1)
	assert.Contains(t, bot.sent[0].Text, "Số tiền: 150000")
	assert.Contains(t, bot.sent[0].Text, "không có")
}

func TestAsyncNotifier_DispatchesThroughPool(t *testing.T) {
	bot := &fakeSender{}
	pool := worker.NewPool(1, 4, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	n := NewAsyncNotifier(newOperatorNotifier(bot, []int64{111}, nil, testLogger()), pool, testLogger())
	require.NoError(t, n.NotifyUnresolved(ctx, sampleUnresolved()))

	assert.Eventually(t, func() bool { return bot.count() == 1 }, time.Second, 10*time.Millisecond)
}
