package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"jizhang/internal/aggregate"
)

// HTMXResponseBuilder collects HX-Trigger events, headers and an HTML body
// and writes them in one go.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse starts a 200 response.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds an event to HX-Trigger. A later trigger of the same name wins.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerEntryCreated fires entry:created with the entry date.
func (b *HTMXResponseBuilder) TriggerEntryCreated(date string) *HTMXResponseBuilder {
	return b.Trigger("entry:created", map[string]string{"date": date})
}

// TriggerBudgetUpdated fires budget:updated with the new ceiling.
func (b *HTMXResponseBuilder) TriggerBudgetUpdated(amount int) *HTMXResponseBuilder {
	return b.Trigger("budget:updated", map[string]int{"amount": amount})
}

// TriggerFormReset clears the entry form, keeping the date.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

// TriggerNotification fires show-notification. Only one notification is
// carried per response.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// TriggerBudgetAlert replaces the notification with a warning when the month
// is at or past the warning threshold. On-track months are left alone.
func (b *HTMXResponseBuilder) TriggerBudgetAlert(status aggregate.Status, percent int) *HTMXResponseBuilder {
	switch status {
	case aggregate.StatusWarning, aggregate.StatusOver:
		return b.TriggerNotification(NotificationWarning,
			fmt.Sprintf("%s: %d%% of this month's budget used", status.Label(), percent), 6000)
	}
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets an HTML fragment as the body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if encoded, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(encoded))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders an escaped alert fragment for the #messages area.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// BadGatewayError reports a write the spreadsheet rejected.
func BadGatewayError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError sets the Allow header and an empty body.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
