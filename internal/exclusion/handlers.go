package exclusion

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:id/exclusions", func(c *fiber.Ctx) error {
		ranges, err := svc.ListRanges(c.Context(), c.Params("id"))
		if err != nil {
			return mapExclusionError(err)
		}
		return c.JSON(ranges)
	})

	r.Post("/:id/exclusions", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			StartTimeSeconds int    `json:"start_time_seconds"`
			EndTimeSeconds   int    `json:"end_time_seconds"`
			Reason           string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		created, err := svc.CreateRange(c.Context(), c.Params("id"), req.StartTimeSeconds, req.EndTimeSeconds, req.Reason)
		if err != nil {
			return mapExclusionError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Delete("/:id/exclusions/:rangeID", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteRange(c.Context(), c.Params("id"), c.Params("rangeID")); err != nil {
			return mapExclusionError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/:id/hr-outliers/reapply", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Reapply(c.Context(), c.Params("id")); err != nil {
			return mapExclusionError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/:id/hr-outliers/clear", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Clear(c.Context(), c.Params("id")); err != nil {
			return mapExclusionError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

func mapExclusionError(err error) error {
	switch {
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrRangeNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateRange):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNotDeletable):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
