package analytics

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/:id/hr-zones", func(c *fiber.Ctx) error {
		dist, err := svc.ZoneDistribution(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrActivityNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(dist)
	})
}
