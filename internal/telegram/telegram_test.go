package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/threadrelay/internal/assistant"
	"github.com/ashureev/threadrelay/internal/assistant/assistanttest"
	"github.com/ashureev/threadrelay/internal/conversation"
	"github.com/ashureev/threadrelay/internal/dedupe"
	"github.com/ashureev/threadrelay/internal/domain"
	"github.com/ashureev/threadrelay/internal/store"
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	made      map[string]tgbotapi.Params
	sendErr   error
	updates   chan tgbotapi.Update
	stopped   bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{made: map[string]tgbotapi.Params{}, updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made[endpoint] = params
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []domain.InboundMessage
	done chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, 16)}
}

func (h *recordingHandler) Handle(_ context.Context, msg domain.InboundMessage) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) waitFor(t *testing.T, n int) []domain.InboundMessage {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d turns", n)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.InboundMessage(nil), h.msgs...)
}

func textUpdate(updateID int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: 99, UserName: "alice"},
			Text:      text,
			Date:      1700000000,
		},
	}
}

func TestToInbound(t *testing.T) {
	t.Parallel()

	msg, ok := ToInbound(textUpdate(1, 42, "hello"))
	require.True(t, ok)
	assert.Equal(t, domain.ChatID("42"), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "99", msg.SenderID)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, 1, msg.UpdateID)

	_, ok = ToInbound(tgbotapi.Update{UpdateID: 2})
	assert.False(t, ok)

	sticker := textUpdate(3, -100123, "")
	msg, ok = ToInbound(sticker)
	require.True(t, ok)
	assert.Equal(t, "", msg.Text)
	assert.Equal(t, domain.ChatID("-100123"), msg.ChatID)
}

func TestDispatcherDropsRedeliveredUpdates(t *testing.T) {
	t.Parallel()
	handler := newRecordingHandler()
	d := NewDispatcher(handler, dedupe.New(time.Minute, 100), nil)

	assert.True(t, d.Dispatch(context.Background(), textUpdate(10, 42, "hello")))
	assert.False(t, d.Dispatch(context.Background(), textUpdate(10, 42, "hello")))
	assert.True(t, d.Dispatch(context.Background(), textUpdate(11, 42, "again")))
	assert.False(t, d.Dispatch(context.Background(), tgbotapi.Update{UpdateID: 12}))

	msgs := handler.waitFor(t, 2)
	d.Wait()
	assert.Len(t, msgs, 2)
}

func TestRelaySendText(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	relay := NewRelay(api)

	require.NoError(t, relay.SendText(context.Background(), "42", "hi"))
	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "hi", msg.Text)

	require.Error(t, relay.SendText(context.Background(), "not-a-number", "hi"))

	api.sendErr = errors.New("forbidden")
	require.Error(t, relay.SendText(context.Background(), "42", "hi"))
}

func TestRelaySendTyping(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()

	require.NoError(t, NewRelay(api).SendTyping(context.Background(), "42"))
	require.Len(t, api.requested, 1)
	action, ok := api.requested[0].(tgbotapi.ChatActionConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ChatTyping, action.Action)
}

func TestTruncateText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncateText("short"))

	long := strings.Repeat("é", maxMessageLength)
	got := truncateText(long)
	assert.LessOrEqual(t, len(got), maxMessageLength)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "ab", sanitizeText("a\xffb"))
}

func TestWebhookHandler(t *testing.T) {
	t.Parallel()
	handler := newRecordingHandler()
	d := NewDispatcher(handler, nil, nil)
	h := WebhookHandler(context.Background(), d, nil)

	body := `{"update_id":5,"message":{"message_id":1,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	msgs := handler.waitFor(t, 1)
	assert.Equal(t, "/start", msgs[0].Text)
	assert.Equal(t, domain.ChatID("42"), msgs[0].ChatID)

	bad := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterWebhook(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()

	require.NoError(t, RegisterWebhook(api, "https://bot.example.com/telegram/webhook", "s3cret"))
	params := api.made["setWebhook"]
	assert.Equal(t, "https://bot.example.com/telegram/webhook", params["url"])
	assert.Equal(t, "s3cret", params["secret_token"])
}

func TestPollDispatchesUntilCancelled(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	handler := newRecordingHandler()
	d := NewDispatcher(handler, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- Poll(ctx, api, d, nil) }()

	api.updates <- textUpdate(1, 42, "hello")
	msgs := handler.waitFor(t, 1)
	assert.Equal(t, "hello", msgs[0].Text)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after cancel")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	require.NotEmpty(t, api.requested)
	_, ok := api.requested[0].(tgbotapi.DeleteWebhookConfig)
	assert.True(t, ok)
}

func TestShutdownMidPollStillDeliversReply(t *testing.T) {
	t.Parallel()

	bindings, err := store.NewSQLite(filepath.Join(t.TempDir(), "bindings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bindings.Close() })

	client := assistanttest.NewClient("finished anyway")
	client.Statuses = []domain.RunStatus{domain.RunStatusInProgress, domain.RunStatusCompleted}

	baseCtx, shutdown := context.WithCancel(context.Background())
	var sleeps int
	sleeper := assistant.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		sleeps++
		if sleeps == 2 {
			// SIGTERM arrives after the first status check.
			shutdown()
		}
		return ctx.Err()
	})

	api := newFakeAPI()
	driver := assistant.NewRunDriver(client, "asst_1", assistant.WithSleeper(sleeper))
	handler := conversation.NewHandler(bindings, assistant.NewThreads(client, nil), driver, NewRelay(api), nil)
	d := NewDispatcher(handler, nil, nil)

	require.True(t, d.Dispatch(baseCtx, textUpdate(1, 42, "hello")))
	d.Wait()

	require.Error(t, baseCtx.Err())
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "finished anyway", msg.Text)
	assert.Equal(t, 2, client.GetRunCalls)
}

func TestRelaySendsOnCancelledContext(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, NewRelay(api).SendText(ctx, domain.ChatID("42"), "still delivered"))
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.sent, 1)
}
