package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/audit"
	"github.com/trezcool/shule/core/enrollment"
)

type attendanceApi struct {
	svc        attendance.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{
		svc:        deps.AttendanceSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// all endpoints require an authenticated teacher or admin
	ag := g.Group("/attendance", jwt, staffMiddleware())
	ag.POST("/absences", api.createAbsence)
	ag.POST("/delays", api.createDelay)
	ag.POST("/roll-call", api.bulkRollCall)
	ag.GET("", api.query)

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/justify", api.justify)
	dg.GET("/history", api.history)

	cg := g.Group("/classes", jwt, staffMiddleware())
	cg.GET("/:id/students", api.classRoster)
}

// RecordRequest is the payload for the single-record creation endpoints.
// The kind is implied by the endpoint. An optional justification is applied
// right after creation, for events excused on the spot.
type RecordRequest struct {
	StudentID       string                    `json:"student_id"`
	OccurredAt      time.Time                 `json:"occurred_at"`
	DurationMinutes int                       `json:"duration_minutes"`
	Reason          string                    `json:"reason"`
	Justification   *attendance.JustifyRecord `json:"justification,omitempty"`
}

// Handlers

func (api *attendanceApi) createAbsence(ctx echo.Context) error {
	return api.create(ctx, attendance.BaseAbsence)
}

func (api *attendanceApi) createDelay(ctx echo.Context) error {
	return api.create(ctx, attendance.BaseDelay)
}

func (api *attendanceApi) create(ctx echo.Context, base attendance.Base) error {
	var data RecordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordRequest")
	}

	// fail the immediate justification upfront so no record is left behind
	if data.Justification != nil {
		data.Justification.Clean()
		if err := data.Justification.Validate(api.validate); err != nil {
			return err
		}
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), actor, attendance.NewRecord{
		StudentID:       data.StudentID,
		KindBase:        base,
		OccurredAt:      data.OccurredAt,
		DurationMinutes: data.DurationMinutes,
		Reason:          data.Reason,
	})
	if err != nil {
		return errors.Wrap(err, "creating record")
	}

	if data.Justification != nil {
		rec, err = api.svc.Justify(ctx.Request().Context(), actor, rec.ID, *data.Justification)
		if err != nil {
			return errors.Wrap(err, "justifying record")
		}
	}

	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) bulkRollCall(ctx echo.Context) error {
	var data attendance.RollCall
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RollCall")
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.BulkRollCall(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "processing roll call")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding record by ID")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	var data attendance.EditRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditRecord")
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.Edit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) justify(ctx echo.Context) error {
	var data attendance.JustifyRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JustifyRecord")
	}

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.Justify(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "justifying record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	entries, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying record history")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) classRoster(ctx echo.Context) error {
	date, err := bindDateParam(ctx, dateParam)
	if err != nil {
		return err
	}

	roster, err := api.svc.ClassRoster(ctx.Request().Context(), ctx.Param("id"), date)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying class roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}
