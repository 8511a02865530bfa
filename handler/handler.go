// Package handler adapts API Gateway proxy events onto the relay and bot
// use cases. It owns the two-branch split: bodies carrying an update_id are
// inbound platform updates, everything else is an outbound relay request.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"studio-relay/internal/domain"
	"studio-relay/internal/usecase"
)

const (
	correlationHeader   = "X-Correlation-Id"
	webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Cross-origin access is wide open on purpose: the endpoint is called from
// the public site and the Mini App, and holds no browser-relevant secrets.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Methods":     "GET,OPTIONS,PATCH,DELETE,POST,PUT",
	"Access-Control-Allow-Headers":     "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version",
}

// RelayUseCase performs one outbound transmission.
type RelayUseCase interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

// BotUseCase processes one inbound webhook update.
type BotUseCase interface {
	HandleUpdate(ctx context.Context, upd domain.Update) error
}

type Handler struct {
	relay         RelayUseCase
	bot           BotUseCase
	webhookSecret string
	debug         bool
	log           *slog.Logger
}

// Options carries the optional handler knobs.
type Options struct {
	// WebhookSecret, when non-empty, must match the platform secret header
	// on inbound updates.
	WebhookSecret string
	// Debug exposes internal error detail in error responses.
	Debug bool
	Log   *slog.Logger
}

func NewHandler(relay RelayUseCase, bot BotUseCase, opts Options) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay use case must not be nil")
	}
	if bot == nil {
		return nil, errors.New("handler: bot use case must not be nil")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		relay:         relay,
		bot:           bot,
		webhookSecret: opts.WebhookSecret,
		debug:         opts.Debug,
		log:           log,
	}, nil
}

type relayResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	TransmissionID    string `json:"transmissionId"`
	Type              string `json:"type"`
	Timestamp         string `json:"timestamp"`
	TelegramMessageID int64  `json:"telegramMessageId"`
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// updateProbe detects which branch a POST body belongs to. Presence of
// update_id marks an inbound platform update.
type updateProbe struct {
	UpdateID *int64 `json:"update_id"`
}

// Handle is the Lambda entry point for every request on the endpoint.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := baseHeaders(req)

	switch req.HTTPMethod {
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	case http.MethodPost:
	default:
		return respondError(headers, http.StatusMethodNotAllowed,
			"Quantum interference detected. Method not allowed.", "", ""), nil
	}

	var probe updateProbe
	if err := json.Unmarshal([]byte(req.Body), &probe); err != nil {
		return respondError(headers, http.StatusBadRequest,
			"Invalid transmission data format.", string(usecase.ErrorInvalidInput), h.detail(err)), nil
	}

	if probe.UpdateID != nil {
		return h.handleUpdate(ctx, req, headers), nil
	}
	return h.handleRelay(ctx, req, headers), nil
}

// handleUpdate dispatches an inbound platform update. Once the body is
// syntactically accepted the platform always gets a 200 ack, even when
// dispatch fails, so delivery retries cannot amplify a bug into repeated
// side effects. Failures go to the log only.
func (h *Handler) handleUpdate(ctx context.Context, req events.APIGatewayProxyRequest, headers map[string]string) events.APIGatewayProxyResponse {
	if h.webhookSecret != "" && header(req, webhookSecretHeader) != h.webhookSecret {
		h.log.Warn("webhook update rejected", "reason", "secret_mismatch")
		return respondError(headers, http.StatusUnauthorized, "Unauthorized.", "", "")
	}

	var upd domain.Update
	if err := json.Unmarshal([]byte(req.Body), &upd); err != nil {
		return respondError(headers, http.StatusBadRequest,
			"Invalid transmission data format.", string(usecase.ErrorInvalidInput), h.detail(err))
	}

	if err := h.bot.HandleUpdate(ctx, upd); err != nil {
		h.log.Error("update dispatch failed", "update_id", upd.UpdateID, "err", err)
	}
	return respond(headers, http.StatusOK, ackResponse{Status: "ok"})
}

func (h *Handler) handleRelay(ctx context.Context, req events.APIGatewayProxyRequest, headers map[string]string) events.APIGatewayProxyResponse {
	var payload domain.RelayPayload
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return respondError(headers, http.StatusBadRequest,
			"Invalid transmission data format.", string(usecase.ErrorInvalidInput), h.detail(err))
	}

	out, err := h.relay.Relay(ctx, usecase.RelayInput{Payload: payload, Identity: callerIdentity(req)})
	if err != nil {
		code := errorCode(err)
		h.log.Error("relay failed", "type", payload.Type, "source", payload.Source, "code", code, "err", err)
		return respondError(headers, statusForCode(code), messageForCode(code), string(code), h.detail(err))
	}

	h.log.Info("transmission successful",
		"type", out.Type, "transmission_id", out.TransmissionID, "message_id", out.TelegramMessageID)
	return respond(headers, http.StatusOK, relayResponse{
		Status:            "success",
		Message:           "Quantum transmission successful! Data received across dimensions.",
		TransmissionID:    out.TransmissionID,
		Type:              string(out.Type),
		Timestamp:         out.Timestamp.Format(time.RFC3339),
		TelegramMessageID: out.TelegramMessageID,
	})
}

func errorCode(err error) usecase.ErrorCode {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return ucErr.Code
	}
	return usecase.ErrorInternal
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorConfiguration:
		return http.StatusInternalServerError
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	case usecase.ErrorNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageForCode keeps caller-facing text generic. Configuration failures in
// particular must not reveal whether credentials exist or are merely wrong.
func messageForCode(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "Invalid transmission format. Please check your data."
	case usecase.ErrorRateLimited:
		return "Transmission rate exceeded. Please try again shortly."
	case usecase.ErrorConfiguration:
		return "Quantum server misconfigured. Transmission failed."
	case usecase.ErrorUpstream:
		return "Quantum gateway error. Transmission failed."
	case usecase.ErrorNetwork:
		return "Quantum network disruption. Please try again."
	default:
		return "Quantum system overload. Transmission failed."
	}
}

// detail returns internal error text only in debug mode.
func (h *Handler) detail(err error) string {
	if !h.debug || err == nil {
		return ""
	}
	return err.Error()
}

func baseHeaders(req events.APIGatewayProxyRequest) map[string]string {
	headers := make(map[string]string, len(corsHeaders)+2)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"

	correlationID := header(req, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	headers[correlationHeader] = correlationID
	return headers
}

// header fetches a request header case-insensitively; API Gateway does not
// normalize casing.
func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// callerIdentity returns the rate-limit key for relay requests: the source
// IP as seen by the gateway, falling back to the first forwarded address.
func callerIdentity(req events.APIGatewayProxyRequest) string {
	if ip := req.RequestContext.Identity.SourceIP; ip != "" {
		return ip
	}
	if fwd := header(req, "X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return ""
}

func respond(headers map[string]string, status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		// Marshalling plain response structs cannot realistically fail;
		// degrade to a bare status if it somehow does.
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: headers}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(raw)}
}

func respondError(headers map[string]string, status int, message, code, details string) events.APIGatewayProxyResponse {
	return respond(headers, status, errorResponse{
		Status:  "error",
		Error:   message,
		Code:    code,
		Details: details,
	})
}
