package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"studio-relay/internal/domain"
)

func staticSource() StaticSource {
	return StaticSource{Token: "123:abc", ChatID: "-1000"}
}

func newTestClient(t *testing.T, handlerFn http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handlerFn)
	t.Cleanup(srv.Close)
	c, err := NewClient(staticSource(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestNewClient_NilSource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}

func TestSendToChannel_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	})

	id, err := c.SendToChannel(context.Background(), "hello channel")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.Equal(t, "/bot123:abc/sendMessage", gotPath)
	require.Equal(t, "-1000", gotBody["chat_id"])
	require.Equal(t, "Markdown", gotBody["parse_mode"])
	require.Equal(t, true, gotBody["disable_web_page_preview"])
}

func TestSendToChannel_APIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	})

	_, err := c.SendToChannel(context.Background(), "hello")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 401, apiErr.ErrorCode)
	require.Equal(t, "Unauthorized", apiErr.Description)
}

func TestSendToChannel_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // force connection refused

	c, err := NewClient(staticSource(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.SendToChannel(context.Background(), "hello")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "sendMessage", transportErr.Method)
}

func TestSendReply_BuildsInlineKeyboard(t *testing.T) {
	var gotBody struct {
		ChatID      string `json:"chat_id"`
		ReplyMarkup *struct {
			InlineKeyboard [][]struct {
				Text         string `json:"text"`
				CallbackData string `json:"callback_data"`
			} `json:"inline_keyboard"`
		} `json:"reply_markup"`
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	})

	_, err := c.SendReply(context.Background(), 4242, "pick one", []domain.Button{
		{Label: "Pricing", Action: "pricing"},
		{Label: "Portfolio", Action: "portfolio"},
	})
	require.NoError(t, err)
	require.Equal(t, "4242", gotBody.ChatID)
	require.NotNil(t, gotBody.ReplyMarkup)
	require.Len(t, gotBody.ReplyMarkup.InlineKeyboard, 2)
	require.Equal(t, "pricing", gotBody.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestSendReply_NoButtonsOmitsKeyboard(t *testing.T) {
	var gotRaw map[string]json.RawMessage
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotRaw))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	})

	_, err := c.SendReply(context.Background(), 4242, "plain", nil)
	require.NoError(t, err)
	require.NotContains(t, gotRaw, "reply_markup")
}

func TestAnswerCallback(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, c.AnswerCallback(context.Background(), "cb-1"))
	require.Equal(t, "/bot123:abc/answerCallbackQuery", gotPath)
}

func TestSetWebhook(t *testing.T) {
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, c.SetWebhook(context.Background(), "https://relay.example/api/telegram", "s3cret"))
	require.Equal(t, "https://relay.example/api/telegram", gotBody["url"])
	require.Equal(t, "s3cret", gotBody["secret_token"])
}

func TestStaticSource_NotConfigured(t *testing.T) {
	_, err := StaticSource{}.Credentials(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = StaticSource{Token: "t"}.Credentials(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}

// fakeGetter is a minimal paramstore stub for credential-source tests.
type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestParamSource_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"123:abc","chat_id":"-1000"}`}
	g.onCall = func() { calls++ }

	src, err := NewParamSource(g, "/studio-relay/")
	require.NoError(t, err)

	creds, err := src.Credentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, Credentials{Token: "123:abc", ChatID: "-1000"}, creds)
	require.Equal(t, 1, calls)

	// Subsequent calls must never hit the parameter store again.
	_, _ = src.Credentials(context.Background())
	_, _ = src.Credentials(context.Background())
	require.Equal(t, 1, calls)
}

func TestParamSource_IncompletePayload(t *testing.T) {
	src, err := NewParamSource(&fakeGetter{val: `{"token":"123:abc"}`}, "/studio-relay")
	require.NoError(t, err)

	_, err = src.Credentials(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestParamSource_GetterError(t *testing.T) {
	src, err := NewParamSource(&fakeGetter{err: errors.New("ssm down")}, "/studio-relay")
	require.NoError(t, err)

	_, err = src.Credentials(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm down")
}

func TestNewParamSource_Validation(t *testing.T) {
	_, err := NewParamSource(nil, "/studio-relay")
	require.Error(t, err)

	_, err = NewParamSource(&fakeGetter{}, "   ")
	require.Error(t, err)
}
