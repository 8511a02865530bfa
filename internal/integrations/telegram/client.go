package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"studio-relay/internal/domain"
)

// ErrNotConfigured is returned when the bot token or destination chat id is
// absent. Handlers map it to a generic configuration-error response.
var ErrNotConfigured = errors.New("telegram: bot credentials not configured")

// Credentials holds the bot secret token and the destination channel id.
type Credentials struct {
	Token  string `json:"token"`
	ChatID string `json:"chat_id"`
}

// CredentialSource yields bot credentials. Implementations cache internally;
// callers may invoke it on every request.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticSource serves fixed credentials, typically read from the
// environment at startup.
type StaticSource Credentials

func (s StaticSource) Credentials(context.Context) (Credentials, error) {
	if s.Token == "" || s.ChatID == "" {
		return Credentials{}, ErrNotConfigured
	}
	return Credentials(s), nil
}

// Getter is the parameter-store dependency for ParamSource. It matches the
// paramstore client so consumers stay testable without AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamSource fetches credentials from the parameter store on first use and
// reuses them for the lifetime of the process.
type ParamSource struct {
	getter Getter
	name   string

	once   sync.Once
	cached Credentials
	err    error
}

// NewParamSource creates a ParamSource reading the JSON credentials payload
// stored under <prefix>/telegram-bot.
func NewParamSource(g Getter, paramPrefix string) (*ParamSource, error) {
	if g == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}
	return &ParamSource{getter: g, name: paramPrefix + "/telegram-bot"}, nil
}

func (p *ParamSource) Credentials(ctx context.Context) (Credentials, error) {
	p.once.Do(func() {
		raw, err := p.getter.GetParameter(ctx, p.name)
		if err != nil {
			p.err = fmt.Errorf("telegram: fetch credentials from paramstore: %w", err)
			return
		}
		var creds Credentials
		if err := json.Unmarshal([]byte(raw), &creds); err != nil {
			p.err = fmt.Errorf("telegram: unmarshal paramstore credentials as JSON: %w", err)
			return
		}
		if creds.Token == "" || creds.ChatID == "" {
			p.err = ErrNotConfigured
			return
		}
		p.cached = creds
	})
	return p.cached, p.err
}

// APIError is a Bot API response with ok=false. ErrorCode follows the
// platform convention (400 bad request, 401 bad token, 403 bot blocked from
// the chat, 429 flood control).
type APIError struct {
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.ErrorCode, e.Description)
}

// TransportError wraps a failure to reach the Bot API at all, as opposed to
// the API rejecting the call.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telegram: %s transport failure: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// sendMessageRequest is the minimal request shape for the sendMessage method.
type sendMessageRequest struct {
	ChatID                string                `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// sentMessage is the minimal result shape of sendMessage.
type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
}

type setWebhookRequest struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

// Client is a focused Bot API client covering the three methods this
// service needs: sendMessage, answerCallbackQuery and setWebhook.
type Client struct {
	baseURL    string
	httpClient *http.Client
	source     CredentialSource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given credential source.
func NewClient(source CredentialSource, opts ...Option) (*Client, error) {
	if source == nil {
		return nil, errors.New("telegram: credential source must not be nil")
	}
	c := &Client{
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		source:     source,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendToChannel delivers text to the configured destination channel and
// returns the platform message id.
func (c *Client) SendToChannel(ctx context.Context, text string) (int64, error) {
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return 0, err
	}
	return c.send(ctx, creds, sendMessageRequest{
		ChatID:                creds.ChatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
}

// SendReply delivers a dispatcher reply to the chat an update came from.
func (c *Client) SendReply(ctx context.Context, chatID int64, text string, buttons []domain.Button) (int64, error) {
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return 0, err
	}
	return c.send(ctx, creds, sendMessageRequest{
		ChatID:      fmt.Sprintf("%d", chatID),
		Text:        text,
		ParseMode:   "Markdown",
		ReplyMarkup: keyboard(buttons),
	})
}

// AnswerCallback stops the pressed button's loading spinner. Best-effort:
// the reply is still sent when this fails.
func (c *Client) AnswerCallback(ctx context.Context, callbackQueryID string) error {
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, creds, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackQueryID})
	return err
}

// SetWebhook registers url as the webhook endpoint, optionally with the
// shared secret the platform echoes back in the
// X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, creds, "setWebhook", setWebhookRequest{URL: url, SecretToken: secretToken})
	return err
}

func (c *Client) send(ctx context.Context, creds Credentials, req sendMessageRequest) (int64, error) {
	raw, err := c.call(ctx, creds, "sendMessage", req)
	if err != nil {
		return 0, err
	}
	var sent sentMessage
	if err := json.Unmarshal(raw, &sent); err != nil {
		return 0, fmt.Errorf("telegram: decode sendMessage result: %w", err)
	}
	return sent.MessageID, nil
}

func keyboard(buttons []domain.Button) *inlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	// One button per row keeps labels readable on narrow clients.
	rows := make([][]inlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []inlineKeyboardButton{{Text: b.Label, CallbackData: b.Action}})
	}
	return &inlineKeyboardMarkup{InlineKeyboard: rows}
}

// call performs one Bot API method invocation. The API reports failures in
// the response envelope (with a matching non-2xx status), so the body is
// decoded regardless of status code.
func (c *Client) call(ctx context.Context, creds Credentials, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, creds.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	var envelope apiResponse
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return nil, &APIError{ErrorCode: envelope.ErrorCode, Description: envelope.Description}
	}
	return envelope.Result, nil
}
