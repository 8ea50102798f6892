package services

import (
	"strings"

	"mai/internal/jobs"
	"mai/types"

	"github.com/gofiber/fiber/v2"
)

func (a *Api) SubmitJob() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if a.runner == nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
				Error:   "runner not configured",
				Message: "service unavailable",
			})
		}

		var req types.JobRequest
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "invalid body",
			})
		}

		req.ClientID = strings.TrimSpace(req.ClientID)
		if req.ClientID == "" {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   "clientId is required",
				Message: "missing clientId",
			})
		}
		if _, ok := a.nodes.Lookup(req.Class); !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown node class",
				Message: req.Class,
			})
		}

		jobID, err := a.runner.Submit(req.ClientID, req.Class, req.Inputs)
		if err != nil {
			return errorJSON(ctx, err, "failed to enqueue job")
		}

		l := HttpLogger(a.logger, "submit", ctx)
		if !a.hub.Connected(req.ClientID) {
			l.Warn("no websocket for client, events will be missed", "clientId", req.ClientID, "job", jobID)
		}
		l.Debug("job queued", "job", jobID, "class", req.Class)
		return ctx.Status(fiber.StatusAccepted).JSON(types.JobResponse{JobID: jobID})
	}
}

func (a *Api) GetJob() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		job, ok := a.tracker.Get(ctx.Params("id"))
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   jobs.ErrJobNotFound.Error(),
				Message: ctx.Params("id"),
			})
		}

		resp := types.JobStatusResponse{
			JobID:          job.ID,
			ClientID:       job.ClientID,
			Class:          job.Class,
			Status:         string(job.Status),
			GeneratedTexts: job.GeneratedTexts,
			Error:          job.Error,
			CreatedAt:      job.CreatedAt.Unix(),
		}
		if resp.GeneratedTexts == nil {
			resp.GeneratedTexts = []string{}
		}
		if job.FinishedAt != nil {
			resp.FinishedAt = job.FinishedAt.Unix()
		}
		if job.Status == jobs.StatusCompleted {
			def, _ := a.nodes.Lookup(job.Class)
			outputs, err := encodeOutputs(def, job.Outputs)
			if err != nil {
				return ctx.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
					Error:   err.Error(),
					Message: "failed to encode outputs",
				})
			}
			resp.Outputs = outputs
		}
		return ctx.Status(fiber.StatusOK).JSON(resp)
	}
}
