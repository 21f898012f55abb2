package activity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/z00rd/sporter/internal/gpx"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		activities, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(activities)
	})

	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "gpx file required")
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".gpx") {
			return fiber.NewError(fiber.StatusBadRequest, "only gpx files are allowed")
		}
		if svc.cfg.MaxUploadBytes > 0 && fileHeader.Size > svc.cfg.MaxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file too large")
		}

		userID, _ := c.Locals("user_id").(string)

		// Stored paths are namespaced per user so identical filenames from
		// different users never collide. The duplicate check runs before
		// anything touches the disk: a duplicate upload must not overwrite
		// the file the existing activity references.
		path := filepath.Join(svc.cfg.UploadDir, userID+"_"+filepath.Base(fileHeader.Filename))
		if err := svc.checkDuplicate(c.Context(), path, userID); err != nil {
			if errors.Is(err, ErrDuplicateFile) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		if err := os.MkdirAll(svc.cfg.UploadDir, 0o755); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if err := c.SaveFile(fileHeader, path); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		act, err := svc.Import(c.Context(), path, userID)
		if err != nil {
			if !errors.Is(err, ErrDuplicateFile) {
				_ = os.Remove(path)
			}
			switch {
			case errors.Is(err, ErrDuplicateFile):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, gpx.ErrNoTrack), errors.Is(err, gpx.ErrNoTrackpoints), errors.Is(err, ErrOutOfOrderPoints):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			default:
				return fiber.NewError(fiber.StatusBadRequest, "failed to import gpx: "+err.Error())
			}
		}
		return c.Status(fiber.StatusCreated).JSON(act)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		act, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return mapActivityError(err)
		}
		return c.JSON(act)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return mapActivityError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Get("/:id/trackpoints", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 0)
		points, err := svc.Trackpoints(c.Context(), c.Params("id"), limit)
		if err != nil {
			return mapActivityError(err)
		}
		return c.JSON(points)
	})

	r.Get("/:id/heart-rate", func(c *fiber.Ctx) error {
		series, err := svc.HeartRateSeries(c.Context(), c.Params("id"))
		if err != nil {
			return mapActivityError(err)
		}
		return c.JSON(series)
	})

	r.Get("/:id/elevation", func(c *fiber.Ctx) error {
		profile, err := svc.ElevationProfile(c.Context(), c.Params("id"))
		if err != nil {
			return mapActivityError(err)
		}
		return c.JSON(profile)
	})
}

func mapActivityError(err error) error {
	if errors.Is(err, ErrActivityNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
