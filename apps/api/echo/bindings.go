package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

var (
	orderingParam = "ordering"

	// headerClientTempID carries the offline id of a record created on a client.
	headerClientTempID = "X-Client-Temp-Id"
)

const headerAcceptLanguage = "Accept-Language"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// int64Param reads an integer query param, def when it is missing or malformed.
func int64Param(ctx echo.Context, name string, def int64) int64 {
	if v, err := strconv.ParseInt(ctx.QueryParam(name), 10, 64); err == nil {
		return v
	}
	return def
}

// lang returns the language a response should be rendered in.
func lang(ctx echo.Context, def string) string {
	if l := ctx.QueryParam("lang"); l != "" {
		return l
	}
	if al := ctx.Request().Header.Get(headerAcceptLanguage); al != "" {
		return al
	}
	return def
}
