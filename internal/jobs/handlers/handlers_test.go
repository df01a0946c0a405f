package handlers

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/jobs"
	"github.com/Proton-105/itpomosh-bot/internal/notify"
	"github.com/Proton-105/itpomosh-bot/internal/repository"
	"github.com/Proton-105/itpomosh-bot/internal/state"
)

type stubSender struct {
	err  error
	sent []notify.Message
}

func (s *stubSender) Channel() string { return "stub" }

func (s *stubSender) Send(_ context.Context, msg notify.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestNotifyHandler(t *testing.T) {
	task, err := jobs.NewNotifyTask(jobs.NotifyPayload{Kind: "new_order", Text: "🆕 Новая заявка"}, 5)
	require.NoError(t, err)

	tests := []struct {
		name      string
		sendErr   error
		wantErr   bool
		skipRetry bool
	}{
		{name: "delivered"},
		{name: "transient", sendErr: errors.NewNotificationError("stub", assert.AnError), wantErr: true},
		{name: "permanent", sendErr: errors.Permanent(assert.AnError), wantErr: true, skipRetry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{err: tt.sendErr}
			err := NewNotifyHandler(sender, nil).ProcessTask(context.Background(), task)

			require.Len(t, sender.sent, 1)
			assert.Equal(t, notify.KindNewOrder, sender.sent[0].Kind)
			assert.Equal(t, "🆕 Новая заявка", sender.sent[0].Text)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, isSkipRetry(err))
		})
	}
}

func TestNotifyHandlerRejectsMalformedPayload(t *testing.T) {
	sender := &stubSender{}
	err := NewNotifyHandler(sender, nil).ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeNotify, []byte("{")))

	require.Error(t, err)
	assert.True(t, isSkipRetry(err))
	assert.Empty(t, sender.sent)
}

func TestStateCleanupHandler(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now().UTC()

	store.SetClock(func() time.Time { return now.Add(-48 * time.Hour) })
	require.NoError(t, store.SetState(context.Background(), 1, state.NewUserState(1, "old")))
	store.SetClock(func() time.Time { return now })
	require.NoError(t, store.SetState(context.Background(), 2, state.NewUserState(2, "fresh")))

	task, err := jobs.NewStateCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, NewStateCleanupHandler(store, nil).ProcessTask(context.Background(), task))

	_, err = store.GetState(context.Background(), 1)
	assert.ErrorIs(t, err, state.ErrStateNotFound)
	_, err = store.GetState(context.Background(), 2)
	assert.NoError(t, err)
}

func isSkipRetry(err error) bool {
	return stderrors.Is(err, asynq.SkipRetry)
}
