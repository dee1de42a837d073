package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	apperrors "github.com/acme/click-to-call/pkg/errors"
)

const (
	eventOutEnd     = "NOTIFY_OUT_END"
	callStartLayout = "2006-01-02 15:04:05"
)

// notifyEcho answers the provider's webhook verification request.
func (h *HandlerSet) notifyEcho(ctx *fiber.Ctx) error {
	if echo := ctx.Query("zd_echo"); echo != "" {
		return ctx.SendString(echo)
	}
	return ctx.SendString("ok")
}

// notify receives provider events. Only the end of an outbound call triggers
// the completion workflow; every other event is acknowledged and dropped.
func (h *HandlerSet) notify(ctx *fiber.Ctx) error {
	fields, err := eventFields(ctx)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	h.log.Debug("provider event", zap.Any("event", fields))

	if fields["event"] != eventOutEnd {
		return ctx.SendString("ok")
	}

	event, invalid, err := parseCompletion(fields, h.loc)
	if err != nil {
		return translateError(err)
	}
	if len(invalid) > 0 {
		h.log.Warn("partial completion event, processing with zero values",
			zap.Strings("invalid_fields", invalid),
			zap.String("internal", event.Internal),
			zap.String("destination", event.Destination),
		)
	}

	err = h.deps.Runner.Go("completion", func(wctx context.Context) error {
		_, err := h.deps.Calls.HandleCompletion(wctx, event)
		return err
	})
	if err != nil {
		return translateError(err)
	}
	return ctx.SendString("ok")
}

// notifyRecord notes that a recording is ready to be downloaded.
func (h *HandlerSet) notifyRecord(ctx *fiber.Ctx) error {
	fields, err := eventFields(ctx)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	id := fields["call_id_with_rec"]
	if id == "" {
		return fiber.NewError(http.StatusBadRequest, "call_id_with_rec is required")
	}
	if err := h.deps.Ledger.MarkPending(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendString("ok")
}

// eventFields reads a form or JSON body into flat string fields.
func eventFields(ctx *fiber.Ctx) (map[string]string, error) {
	out := make(map[string]string)
	if ctx.Is("json") {
		var raw map[string]any
		if err := json.Unmarshal(ctx.Body(), &raw); err != nil {
			return nil, fmt.Errorf("invalid json body")
		}
		for k, v := range raw {
			out[k] = flatten(v)
		}
		return out, nil
	}

	multi := make(map[string][]string)
	ctx.Request().PostArgs().VisitAll(func(key, value []byte) {
		multi[string(key)] = append(multi[string(key)], string(value))
	})
	for k, vs := range multi {
		out[k] = vs[0]
		if len(vs) > 1 {
			out[k] = strings.Join(vs, ",")
		}
	}
	return out, nil
}

// flatten renders a decoded JSON value as a string, unwrapping
// single-element lists.
func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		if len(t) == 1 {
			return flatten(t[0])
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// parseCompletion builds a completion event from provider fields. Only the
// party numbers are mandatory: without them no trunk can be released. A
// missing or malformed call_start or duration leaves the zero value and is
// reported in invalid.
func parseCompletion(fields map[string]string, loc *time.Location) (event domain.CompletionEvent, invalid []string, err error) {
	event = domain.CompletionEvent{
		Internal:      strings.TrimSpace(fields["internal"]),
		Destination:   strings.TrimSpace(fields["destination"]),
		Disposition:   fields["disposition"],
		CorrelationID: fields["correlation_id"],
		ProviderCall:  fields["pbx_call_id"],
	}
	if event.Internal == "" || event.Destination == "" {
		return event, nil, fmt.Errorf("%w: internal and destination are required", apperrors.ErrValidation)
	}

	if start, err := time.ParseInLocation(callStartLayout, fields["call_start"], loc); err == nil {
		event.CallStart = start.UTC()
	} else {
		invalid = append(invalid, "call_start")
	}

	if raw := fields["duration"]; raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d >= 0 {
			event.Duration = d
		} else {
			invalid = append(invalid, "duration")
		}
	}

	if fields["is_recorded"] != "0" {
		event.RecordingID = fields["call_id_with_rec"]
	}
	return event, invalid, nil
}
