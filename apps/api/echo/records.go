package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

var errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")

type recordApi struct {
	svc academic.Service
}

func registerRecordAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc academic.Service) {
	api := recordApi{svc: svc}

	member := []echo.MiddlewareFunc{jwt, schoolMemberMiddleware(), moduleMiddleware()}
	manager := append(member, managerMiddleware())

	g.GET("/:module", api.list, member...)
	g.POST("/:module", api.create, manager...)
	g.GET("/:module/:id", api.retrieve, member...)
	g.PATCH("/:module/:id", api.patch, manager...)
	g.DELETE("/:module/:id", api.destroy, manager...)
}

// moduleMiddleware answers 404 for unknown modules.
func moduleMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !academic.IsModule(ctx.Param("module")) {
				return academic.ErrUnknownModule
			}
			return next(ctx)
		}
	}
}

func bindData(ctx echo.Context) (academic.Data, error) {
	var data academic.Data
	if err := json.NewDecoder(ctx.Request().Body).Decode(&data); err != nil {
		return nil, errInvalidBody
	}
	return data, nil
}

// Handlers

func (api *recordApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	recs, err := api.svc.List(ctx.Request().Context(), claims.SchoolID, ctx.Param("module"), int64Param(ctx, "since", 0))
	if err != nil {
		return errors.Wrap(err, "listing records")
	}
	if recs == nil {
		recs = []academic.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// create answers 201 with the new record, or 200 with the existing one when the temp id is replayed.
func (api *recordApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data, err := bindData(ctx)
	if err != nil {
		return err
	}

	rec, created, err := api.svc.Create(
		ctx.Request().Context(),
		claims.SchoolID,
		ctx.Param("module"),
		data,
		ctx.Request().Header.Get(headerClientTempID),
	)
	if err != nil {
		return errors.Wrap(err, "creating record")
	}
	if !created {
		return ctx.JSON(http.StatusOK, rec)
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *recordApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Get(ctx.Request().Context(), claims.SchoolID, ctx.Param("module"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *recordApi) patch(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data, err := bindData(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.Patch(ctx.Request().Context(), claims.SchoolID, ctx.Param("module"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "patching record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *recordApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.Delete(ctx.Request().Context(), claims.SchoolID, ctx.Param("module"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting record")
	}
	return ctx.NoContent(http.StatusNoContent)
}
