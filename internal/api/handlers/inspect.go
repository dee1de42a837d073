package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

func (h *HandlerSet) listTrunks(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"trunks": h.deps.Trunks.Snapshot()})
}

func (h *HandlerSet) listPending(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"count": h.deps.Pending.Len(),
		"calls": h.deps.Pending.List(),
	})
}

func (h *HandlerSet) pendingRecordings(ctx *fiber.Ctx) error {
	ids, err := h.deps.Ledger.Pending(ctx.Context())
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"recordings": ids})
}

func (h *HandlerSet) getRecord(ctx *fiber.Ctx) error {
	record, err := h.deps.Records.GetCallRecord(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(record)
}
