package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/bulkimport"
)

const formFile = "file"

var contentTypes = map[string]string{
	bulkimport.FormatCSV:  "text/csv; charset=utf-8",
	bulkimport.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type bulkImportApi struct {
	importer *bulkimport.Importer
}

func registerBulkImportAPI(g *echo.Group, jwt echo.MiddlewareFunc, importer *bulkimport.Importer) {
	api := bulkImportApi{importer: importer}

	ig := g.Group("/bulk-import", jwt, schoolMemberMiddleware())
	ig.GET("/template/:module", api.template, moduleMiddleware())
	ig.POST("/:module", api.importFile, moduleMiddleware(), managerMiddleware())
}

// Handlers

func (api *bulkImportApi) template(ctx echo.Context) error {
	module := ctx.Param("module")
	format := ctx.QueryParam("format")
	if format == "" {
		format = bulkimport.FormatXLSX
	}

	var buf bytes.Buffer
	if err := bulkimport.Template(&buf, module, format, lang(ctx, "fr")); err != nil {
		return err
	}

	filename := fmt.Sprintf("%s-template.%s", module, format)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentTypes[format], buf.Bytes())
}

func (api *bulkImportApi) importFile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	fh, err := ctx.FormFile(formFile)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a file is required")
	}
	format := ctx.FormValue("format")
	if format == "" {
		format = bulkimport.FormatOf(fh.Filename)
	}

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	res, err := api.importer.Import(ctx.Request().Context(), claims.SchoolID, ctx.Param("module"), format, file)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
