package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

type notificationApi struct {
	svc      notification.Service
	users    user.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notification.Service, users user.Service, validate *validator.Validate) {
	api := notificationApi{svc: svc, users: users, validate: validate}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("", api.create, managerMiddleware())
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	notifs, err := api.svc.Query(ctx.Request().Context(), claims.Subject, filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data notification.NewNotification
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	// only admins may notify outside of their school
	if !claims.IsAdmin || data.SchoolID == "" {
		data.SchoolID = claims.SchoolID
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if !claims.IsAdmin {
		if _, err = schoolUsers(ctx.Request().Context(), api.users, claims.SchoolID, data.UserIDs); err != nil {
			return err
		}
	}

	notifs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notifications")
	}
	return ctx.JSON(http.StatusCreated, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cnt, err := api.svc.UnreadCount(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cnt, err := api.svc.MarkAllRead(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

// schoolUsers loads the users behind ids, every one of which must belong to schoolID.
func schoolUsers(ctx context.Context, users user.Service, schoolID string, ids []string) ([]user.User, error) {
	usrs := make([]user.User, 0, len(ids))
	for _, id := range ids {
		usr, err := users.GetByID(ctx, id)
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errForeignRecipient
		}
		if err != nil {
			return nil, errors.Wrap(err, "getting recipient")
		}
		if schoolID == "" || usr.SchoolID != schoolID {
			return nil, errForeignRecipient
		}
		usrs = append(usrs, usr)
	}
	return usrs, nil
}

type CountResponse struct {
	Count int `json:"count"`
}
