package httpapi

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-s3-ingest/internal/common"
	"github.com/i474232898/weather-s3-ingest/internal/store"
	"github.com/i474232898/weather-s3-ingest/internal/weather"
)

var validate = validator.New()

// RunReporter exposes the most recent pipeline run.
type RunReporter interface {
	LastSummary() (weather.RunSummary, bool)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, runs RunReporter, catalog *weather.Catalog, agg *weather.Aggregator) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		summary, ok := runs.LastSummary()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no ingestion run has completed yet")
		}
		return c.JSON(summary)
	})

	v1.Get("/objects", func(c *fiber.Ctx) error {
		var q objectsQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		filter, err := weather.ParseFilter(q.Date, q.City)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		objects, err := catalog.List(c.UserContext(), filter, q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to list stored objects")
		}
		if objects == nil {
			objects = []store.ObjectInfo{}
		}

		return c.JSON(fiber.Map{
			"prefix":  filter.ListPrefix(),
			"city":    filter.City,
			"count":   len(objects),
			"objects": objects,
		})
	})

	v1.Get("/objects/+", func(c *fiber.Ctx) error {
		key, err := url.PathUnescape(c.Params("+"))
		if err != nil || key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "invalid object key")
		}

		doc, err := catalog.Document(c.UserContext(), key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no object stored under "+key)
			}
			return fiber.NewError(fiber.StatusBadGateway, "failed to read stored object")
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(doc)
	})

	v1.Get("/analytics", func(c *fiber.Ctx) error {
		var q analyticsQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		start, end, err := q.dateRange()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := agg.Aggregate(c.UserContext(), start, end, q.City)
		if err != nil {
			if errors.Is(err, weather.ErrInvalidRange) || errors.Is(err, weather.ErrRangeTooLong) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate weather data")
		}

		return c.JSON(fiber.Map{
			"start":  start.Format(common.DateLayout),
			"end":    end.Format(common.DateLayout),
			"city":   q.City,
			"cities": stats,
		})
	})
}

// objectsQuery holds query parameters for the listing endpoint.
type objectsQuery struct {
	Date  string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	City  string `query:"city"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=1000"`
}

// analyticsQuery accepts either a single date or a start/end pair.
type analyticsQuery struct {
	Date  string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Start string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	City  string `query:"city"`
}

func (q analyticsQuery) dateRange() (time.Time, time.Time, error) {
	if err := validate.Struct(q); err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch {
	case q.Date != "" && (q.Start != "" || q.End != ""):
		return time.Time{}, time.Time{}, errors.New("use either date or start and end, not both")
	case q.Date != "":
		d, err := common.ParseDate(q.Date)
		return d, d, err
	case q.Start != "" && q.End != "":
		start, err := common.ParseDate(q.Start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := common.ParseDate(q.End)
		return start, end, err
	default:
		return time.Time{}, time.Time{}, errors.New("date or both start and end query parameters are required")
	}
}
