package echoapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
)

const qrCodeSize = 300

type sessionApi struct {
	conf *core.Config
	svc  *session.Service
	gate session.Gate
}

func registerSessionAPI(g *echo.Group, conf *core.Config, svc *session.Service, gate session.Gate, authed []echo.MiddlewareFunc) {
	api := sessionApi{conf: conf, svc: svc, gate: gate}

	sg := g.Group("/sessions", authed...)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/verify-code/:code", api.verifyCode)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/open-attendance", api.open)
	dg.POST("/close-attendance", api.close)
	dg.POST("/regenerate-code", api.regenerateCode)
	dg.GET("/qr-code", api.qrCode)
}

// redact hides the access code from principals who may not operate the session.
func (api *sessionApi) redact(ctx echo.Context, sess *session.Session) error {
	_, err := api.gate.Authorize(ctx.Request().Context(), getContextPrincipal(ctx), sess.Target(), authz.ActionOperateSession)
	switch {
	case err == nil:
		return nil
	case core.IsKind(err, core.KindForbidden):
		sess.AccessCode = ""
		return nil
	}
	return err
}

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	sess, err := api.svc.Create(ctx.Request().Context(), data, getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	sessions, err := api.svc.List(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	for i := range sessions {
		if err := api.redact(ctx, &sessions[i]); err != nil {
			return err
		}
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) verifyCode(ctx echo.Context) error {
	view, err := api.svc.VerifyCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return core.NewError(core.KindInvalidCode, "invalid access code")
		}
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := api.redact(ctx, &sess); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	sess, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx)); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) open(ctx echo.Context) error {
	sess, err := api.svc.Open(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) close(ctx echo.Context) error {
	report, err := api.svc.Close(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *sessionApi) regenerateCode(ctx echo.Context) error {
	sess, err := api.svc.RegenerateCode(ctx.Request().Context(), ctx.Param("id"), getContextPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

// qrCode renders a PNG pointing at the verify-code endpoint of the session's access code.
func (api *sessionApi) qrCode(ctx echo.Context) error {
	sess, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err := api.gate.Authorize(ctx.Request().Context(), getContextPrincipal(ctx), sess.Target(), authz.ActionOperateSession); err != nil {
		return err
	}
	target := fmt.Sprintf("%s/v1/sessions/verify-code/%s", api.conf.Server.Address, url.PathEscape(sess.AccessCode))
	png, err := qrcode.Encode(target, qrcode.Medium, qrCodeSize)
	if err != nil {
		return errors.Wrap(err, "qrcode.Encode()")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}
