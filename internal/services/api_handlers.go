package services

import (
	"time"

	"mai/types"

	"github.com/gofiber/fiber/v2"
)

func (a *Api) Health() fiber.Handler {
	return func(ctx *fiber.Ctx) error {

		return ctx.Status(fiber.StatusOK).JSON(types.HealthResponse{
			Status:    fiber.StatusOK,
			TimeStamp: time.Now().Unix(),
		})
	}
}

func (a *Api) ListNodes() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defs := a.nodes.List()
		infos := make([]types.NodeInfo, 0, len(defs))
		for _, def := range defs {
			infos = append(infos, nodeInfo(def))
		}
		return ctx.Status(fiber.StatusOK).JSON(types.ListNodesResponse{Nodes: infos})
	}
}

func (a *Api) GetNode() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		def, ok := a.nodes.Lookup(ctx.Params("class"))
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown node class",
				Message: ctx.Params("class"),
			})
		}
		return ctx.Status(fiber.StatusOK).JSON(nodeInfo(def))
	}
}

// InvokeNode runs a node synchronously within the request. Generated text is
// not recorded since there is no job to attach it to.
func (a *Api) InvokeNode() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		logger := HttpLogger(a.logger, "invoke", ctx)
		class := ctx.Params("class")

		def, ok := a.nodes.Lookup(class)
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown node class",
				Message: class,
			})
		}

		var requestBody types.InvokeRequest
		if err := ctx.BodyParser(&requestBody); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "invalid body",
			})
		}

		out, err := a.nodes.Invoke(ctx.UserContext(), class, requestBody.Inputs)
		if err != nil {
			logger.Warn("node invocation failed", "class", class, "err", err)
			return errorJSON(ctx, err, "node invocation failed")
		}

		encoded, err := encodeOutputs(def, out)
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "failed to encode outputs",
			})
		}
		return ctx.Status(fiber.StatusOK).JSON(types.InvokeResponse{Class: class, Outputs: encoded})
	}
}
