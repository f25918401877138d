package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/storage/database"
)

const healthTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

func health(deps Deps) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		res := HealthResponse{Status: "ok", Version: deps.Conf.Build}
		if deps.DB == nil {
			return ctx.JSON(http.StatusOK, res)
		}

		c, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
		defer cancel()
		if err := database.Check(c, deps.DB); err != nil {
			deps.Logger.Error("health check: database unreachable", err)
			res.Status = "unavailable"
			res.Database = "down"
			return ctx.JSON(http.StatusServiceUnavailable, res)
		}
		res.Database = "up"
		return ctx.JSON(http.StatusOK, res)
	}
}

func version(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"version": conf.Build})
	}
}
