package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/bulletin"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

const (
	headerVerificationCode = "X-Verification-Code"
	headerVerificationURL  = "X-Verification-Url"
	headerRecipients       = "X-Recipients"
)

type bulletinApi struct {
	schools  school.Service
	users    user.Service
	notifSvc notification.Service
	validate *validator.Validate
	opts     bulletin.Options
}

func registerBulletinAPI(g *echo.Group, jwt echo.MiddlewareFunc, schools school.Service, users user.Service,
	notifSvc notification.Service, validate *validator.Validate, conf *core.Config) {
	api := bulletinApi{
		schools:  schools,
		users:    users,
		notifSvc: notifSvc,
		validate: validate,
		opts: bulletin.Options{
			Creator:       conf.AppName,
			Secret:        conf.Bulletin.Secret,
			VerifyBaseURL: conf.Bulletin.VerifyBaseURL,
		},
	}

	bg := g.Group("/bulletins")
	bg.POST("/verify", api.verify)

	member := []echo.MiddlewareFunc{jwt, schoolMemberMiddleware()}
	bg.GET("/types", api.types, member...)
	bg.POST("/preview", api.preview, append(member, managerMiddleware())...)
	bg.POST("/publish", api.publish, append(member, managerMiddleware())...)
}

type (
	// PublishRequest names the parents to notify. The student's own account, when Student.ID
	// is one, is notified as well.
	PublishRequest struct {
		Bulletin     bulletin.Data `json:"bulletin" validate:"-"`
		RecipientIDs []string      `json:"recipient_ids" validate:"omitempty,dive,required"`
	}

	VerifyRequest struct {
		Bulletin bulletin.Data `json:"bulletin" validate:"-"`
		Code     string        `json:"code" validate:"required"`
	}

	TypeResponse struct {
		Type   bulletin.BulletinType `json:"type"`
		Config bulletin.Config       `json:"config"`
	}
)

// bindBulletin fills in the school block from the current school when the client left it out.
func (api *bulletinApi) bindBulletin(ctx echo.Context, data *bulletin.Data) error {
	if data.School.Name != "" {
		return data.Validate(api.validate)
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sch, err := api.schools.GetByID(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "getting current school")
	}
	data.School = bulletin.SchoolInfo{
		Name:     sch.Name,
		Type:     sch.Type,
		Language: sch.Language,
		Address:  sch.Address,
		Phone:    sch.Phone,
		Region:   sch.Region,
	}
	return data.Validate(api.validate)
}

// Handlers

func (api *bulletinApi) preview(ctx echo.Context) error {
	var data bulletin.Data
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to bulletin.Data")
	}
	if err := api.bindBulletin(ctx, &data); err != nil {
		return err
	}

	var buf bytes.Buffer
	layout, err := bulletin.Generate(&buf, data, api.opts)
	if err != nil {
		return errors.Wrap(err, "generating bulletin")
	}

	ctx.Response().Header().Set(headerVerificationCode, layout.VerificationCode)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", "bulletin-"+data.ID+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func (api *bulletinApi) publish(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var req PublishRequest
	if err = ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to PublishRequest")
	}
	if err = api.validate.Struct(req); err != nil {
		return err
	}
	if err = api.bindBulletin(ctx, &req.Bulletin); err != nil {
		return err
	}
	recipients, err := api.recipients(ctx.Request().Context(), claims.SchoolID, req)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	layout, err := bulletin.Generate(&buf, req.Bulletin, api.opts)
	if err != nil {
		return errors.Wrap(err, "generating bulletin")
	}

	err = api.notifSvc.NotifyBulletinPublished(ctx.Request().Context(), notification.BulletinPublished{
		SchoolID:     claims.SchoolID,
		BulletinID:   req.Bulletin.ID,
		StudentName:  req.Bulletin.Student.Name,
		Term:         req.Bulletin.Term,
		RecipientIDs: recipients,
	})
	if err != nil {
		return errors.Wrap(err, "notifying bulletin recipients")
	}

	h := ctx.Response().Header()
	h.Set(headerVerificationCode, layout.VerificationCode)
	h.Set(headerVerificationURL, layout.VerificationURL)
	h.Set(headerRecipients, strconv.Itoa(len(recipients)))
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "bulletin-"+req.Bulletin.ID+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// recipients resolves who hears about a published bulletin: the requested parents and students
// of the school, plus the student's own account.
func (api *bulletinApi) recipients(ctx context.Context, schoolID string, req PublishRequest) ([]string, error) {
	usrs, err := schoolUsers(ctx, api.users, schoolID, req.RecipientIDs)
	if err != nil {
		return nil, err
	}
	if stu, err := api.users.GetByID(ctx, req.Bulletin.Student.ID); err == nil {
		if stu.SchoolID == schoolID && stu.IsStudent() {
			usrs = append(usrs, stu)
		}
	} else if errors.Cause(err) != user.ErrNotFound {
		return nil, errors.Wrap(err, "getting student account")
	}

	seen := make(map[string]bool, len(usrs))
	ids := make([]string, 0, len(usrs))
	for _, usr := range usrs {
		if !usr.IsParent() && !usr.IsStudent() {
			return nil, errNotFamilyRecipient
		}
		if seen[usr.ID] {
			continue
		}
		seen[usr.ID] = true
		ids = append(ids, usr.ID)
	}
	if len(ids) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "recipient_ids", Error: "this field is required"})
	}
	return ids, nil
}

func (api *bulletinApi) verify(ctx echo.Context) error {
	var req VerifyRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := api.validate.Struct(req); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"valid": bulletin.Verify(req.Bulletin, req.Code, api.opts.Secret)})
}

// types resolves the bulletin type of the current school, optionally for a series (?series=C&lang=en).
func (api *bulletinApi) types(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sch, err := api.schools.GetByID(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "getting current school")
	}

	language := sch.Language
	if l := ctx.QueryParam("lang"); l != "" {
		language = l
	}
	typ := bulletin.DetectBulletinType(sch.Type, language, ctx.QueryParam("series"))
	cfg, err := bulletin.GetBulletinConfig(typ)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TypeResponse{Type: typ, Config: cfg})
}
