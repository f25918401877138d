package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

type schoolApi struct {
	svc      school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc school.Service, validate *validator.Validate) {
	api := schoolApi{svc: svc, validate: validate}

	sg := g.Group("/schools", jwt)
	sg.GET("", api.query, adminMiddleware())
	sg.POST("", api.create, adminMiddleware())
	sg.PUT("/:id/plan", api.setPlan, adminMiddleware())

	cg := sg.Group("/current", schoolMemberMiddleware())
	cg.GET("", api.retrieveCurrent)
	cg.PUT("", api.updateCurrent, roleMiddleware(user.RoleAdmin, user.RoleDirector))
}

// Handlers

func (api *schoolApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.Query(ctx.Request().Context(), ctx.QueryParam("search"), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) setPlan(ctx echo.Context) error {
	var data SetPlanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPlanRequest")
	}

	sch, err := api.svc.SetPlan(ctx.Request().Context(), ctx.Param("id"), data.Plan)
	if err != nil {
		return errors.Wrap(err, "setting school plan")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) retrieveCurrent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sch, err := api.svc.GetByID(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "finding school by ID")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) updateCurrent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sch, err := api.svc.GetByID(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "finding school by ID")
	}

	var data school.UpdateSchool
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err = data.Validate(sch, api.validate); err != nil {
		return err
	}

	sch, err = api.svc.Update(ctx.Request().Context(), sch.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

type SetPlanRequest struct {
	Plan string `json:"plan"`
}
