package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/air-quality-collector/internal/common"
	"github.com/i474232898/air-quality-collector/internal/store"
	"github.com/i474232898/air-quality-collector/internal/weather"
)

var validate = validator.New()

const defaultDaysBack = 45

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles what the handlers need.
type Deps struct {
	Reader weather.Reader
	Stats  *weather.StatsService
	Pinger Pinger
	Cities []weather.City
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.Pinger != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
			defer cancel()
			if err := deps.Pinger.Ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":   "degraded",
					"database": err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "air-quality-collector",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/readings/latest", func(c *fiber.Ctx) error {
		q := cityQuery{City: c.Query("city")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		w, err := deps.Reader.LatestWeather(c.UserContext(), q.City)
		if err != nil {
			return lookupError(err)
		}
		a, err := deps.Reader.LatestAirQuality(c.UserContext(), q.City)
		if err != nil {
			return lookupError(err)
		}

		return c.JSON(fiber.Map{
			"city":       q.City,
			"weather":    w,
			"airQuality": a,
		})
	})

	v1.Get("/stats", func(c *fiber.Ctx) error {
		var req statsQuery
		if err := req.bind(c, deps.Cities); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rep, err := deps.Stats.Describe(c.UserContext(), req.Cities, req.Days)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute statistics")
		}

		return c.JSON(fiber.Map{
			"days":   req.Days,
			"cities": req.Cities,
			"since":  rep.Since,
			"rows":   len(rep.Merged),
			"stats":  rep.Stats,
		})
	})
}

func lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no readings for requested city")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch readings")
}

// cityQuery holds query parameters for identifying a city.
type cityQuery struct {
	City string `validate:"required"`
}

// statsQuery holds query parameters for the stats endpoint.
type statsQuery struct {
	Days   int      `validate:"gte=1,lte=365"`
	Cities []string `validate:"required,min=1,dive,required"`
}

func (s *statsQuery) bind(c *fiber.Ctx, known []weather.City) error {
	s.Days = defaultDaysBack
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("days must be an integer")
		}
		s.Days = n
	}

	s.Cities = common.SplitList(c.Query("cities"))
	if len(s.Cities) == 0 {
		for _, city := range known {
			s.Cities = append(s.Cities, city.Name)
		}
	}
	return nil
}
