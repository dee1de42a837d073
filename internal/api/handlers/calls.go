package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	callsvc "github.com/acme/click-to-call/internal/service/call"
	apperrors "github.com/acme/click-to-call/pkg/errors"
)

type placeCallRequest struct {
	From string `json:"from" form:"from"`
	To   string `json:"to" form:"to"`
	ID   string `json:"id" form:"id"`
}

type placeCallResponse struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

// placeCall accepts the request and runs admission in the background; the
// trunk wait may last as long as the longest live call.
func (h *HandlerSet) placeCall(ctx *fiber.Ctx) error {
	var req placeCallRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	if req.From == "" || req.To == "" {
		return translateError(fmt.Errorf("%w: from and to are required", apperrors.ErrValidation))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	input := callsvc.PlaceCallInput{Origin: req.From, Destination: req.To, CorrelationID: req.ID}
	err := h.deps.Runner.Go("admission", func(wctx context.Context) error {
		_, err := h.deps.Calls.PlaceCall(wctx, input)
		return err
	})
	if err != nil {
		return translateError(err)
	}

	h.log.Info("call request accepted", zap.String("correlation_id", req.ID))
	return ctx.Status(http.StatusAccepted).JSON(placeCallResponse{Status: "accepted", CorrelationID: req.ID})
}
