package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
)

type attendanceApi struct {
	svc   *attendance.Service
	stats *stats.Service
}

func registerAttendanceAPI(g *echo.Group, svc *attendance.Service, statsSvc *stats.Service, authed []echo.MiddlewareFunc) {
	api := attendanceApi{svc: svc, stats: statsSvc}

	ag := g.Group("/attendance", authed...)
	ag.POST("/check-in", api.checkIn)
	ag.POST("/mark", api.mark)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/bulk-import/:sessionId", api.bulkImport)

	sg := ag.Group("/sessions/:id")
	sg.GET("", api.listForSession)
	sg.GET("/stats", api.sessionStats)
	sg.POST("/close-and-mark-absent", api.closeAndMarkAbsent)

	og := ag.Group("/offerings/:offeringId")
	og.GET("/summary", api.courseSummary)
	og.GET("/users/:userId", api.listForUser)
	og.GET("/users/:userId/stats", api.userStats)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	var data attendance.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	att, err := api.svc.CheckIn(ctx.Request().Context(), data, getContextPrincipal(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Mark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Mark")
	}
	att, err := api.svc.Mark(ctx.Request().Context(), data, getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	var data attendance.UpdateAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAttendance")
	}
	att, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx)); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) bulkImport(ctx echo.Context) error {
	var data attendance.BulkImport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkImport")
	}
	report, err := api.svc.BulkImport(ctx.Request().Context(), ctx.Param("sessionId"), data, getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) listForSession(ctx echo.Context) error {
	records, err := api.svc.ListForSession(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) closeAndMarkAbsent(ctx echo.Context) error {
	report, err := api.svc.CloseSessionAndMarkAbsent(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) listForUser(ctx echo.Context) error {
	records, err := api.svc.ListForUser(ctx.Request().Context(), ctx.Param("offeringId"), ctx.Param("userId"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) sessionStats(ctx echo.Context) error {
	st, err := api.stats.ForSession(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *attendanceApi) userStats(ctx echo.Context) error {
	st, err := api.stats.ForUser(ctx.Request().Context(), ctx.Param("offeringId"), ctx.Param("userId"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *attendanceApi) courseSummary(ctx echo.Context) error {
	summary, err := api.stats.ForCourse(ctx.Request().Context(), ctx.Param("offeringId"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	if summary.Students == nil {
		summary.Students = []stats.StudentSummary{}
	}
	return ctx.JSON(http.StatusOK, summary)
}
