package notification

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Categories
const (
	CategoryAcademic      = "academic"
	CategoryAttendance    = "attendance"
	CategoryFinancial     = "financial"
	CategoryCommunication = "communication"
	CategorySystem        = "system"
)

// Action types
const (
	ActionViewBulletin   = "view_bulletin"
	ActionViewGrades     = "view_grades"
	ActionViewAttendance = "view_attendance"
	ActionViewPayment    = "view_payment"
	ActionViewMessage    = "view_message"
	ActionViewHomework   = "view_homework"
	ActionOpenDashboard  = "open_dashboard"
	ActionOpenSettings   = "open_settings"
)

type actionRoute struct {
	pattern     string
	needsEntity bool
}

var (
	actionRoutes = map[string]actionRoute{
		ActionViewBulletin:   {"/bulletins/%s", true},
		ActionViewGrades:     {"/grades/%s", true},
		ActionViewAttendance: {"/attendance/%s", true},
		ActionViewPayment:    {"/payments/%s", true},
		ActionViewMessage:    {"/messages/%s", true},
		ActionViewHomework:   {"/homework/%s", true},
		ActionOpenDashboard:  {"/dashboard", false},
		ActionOpenSettings:   {"/settings", false},
	}

	actionTag       = "notifaction"
	actionText      = core.Text{EN: "unknown action", FR: "action inconnue"}
	actionEntityTag = "notifactionentity"
	actionEntText   = core.Text{EN: "this action needs an entity id", FR: "cette action nécessite un identifiant"}
)

type Notification struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	SchoolID       string `json:"school_id,omitempty"`
	TitleFR        string `json:"title_fr"`
	TitleEN        string `json:"title_en"`
	MessageFR      string `json:"message_fr"`
	MessageEN      string `json:"message_en"`
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	ActionType     string `json:"action_type,omitempty"`
	ActionEntityID string `json:"action_entity_id,omitempty"`
	ActionPath     string `json:"action_path,omitempty"`
	IsRead         bool   `json:"is_read"`
	ReadAt         int64  `json:"read_at,omitempty"`    // epoch ms
	CreatedAt      int64  `json:"created_at"`           // epoch ms
	ExpiresAt      int64  `json:"expires_at,omitempty"` // epoch ms
}

// Title returns the title in lang, french by default.
func (n Notification) Title(lang string) string {
	return core.Text{EN: n.TitleEN, FR: n.TitleFR}.In(lang)
}

func (n Notification) Message(lang string) string {
	return core.Text{EN: n.MessageEN, FR: n.MessageFR}.In(lang)
}

// ResolveActionPath returns the client route of an action, "" when there is no action.
func ResolveActionPath(actionType, entityID string) (string, bool) {
	if actionType == "" {
		return "", true
	}
	route, ok := actionRoutes[actionType]
	if !ok {
		return "", false
	}
	if !route.needsEntity {
		return route.pattern, true
	}
	if entityID == "" {
		return "", false
	}
	return fmt.Sprintf(route.pattern, entityID), true
}

// NewNotification contains information needed to notify one or more users.
type NewNotification struct {
	UserIDs        []string `json:"user_ids" validate:"required,min=1,dive,required"`
	SchoolID       string   `json:"school_id"`
	TitleFR        string   `json:"title_fr" validate:"required"`
	TitleEN        string   `json:"title_en" validate:"required"`
	MessageFR      string   `json:"message_fr" validate:"required"`
	MessageEN      string   `json:"message_en" validate:"required"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Category       string   `json:"category" validate:"required,oneof=academic attendance financial communication system"`
	ActionType     string   `json:"action_type" validate:"omitempty,notifaction"`
	ActionEntityID string   `json:"action_entity_id"`
	ExpiresAt      int64    `json:"expires_at"` // epoch ms, default TTL when zero
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.TitleFR = core.CleanString(nn.TitleFR)
	nn.TitleEN = core.CleanString(nn.TitleEN)
	nn.MessageFR = core.CleanString(nn.MessageFR)
	nn.MessageEN = core.CleanString(nn.MessageEN)
	nn.Priority = core.CleanString(nn.Priority, true /* lower */)
	nn.Category = core.CleanString(nn.Category, true /* lower */)
	nn.ActionType = core.CleanString(nn.ActionType, true /* lower */)
	nn.ActionEntityID = core.CleanString(nn.ActionEntityID)
	if nn.Priority == "" {
		nn.Priority = PriorityNormal
	}
	return validate.Struct(nn)
}

type QueryFilter struct {
	UnreadOnly bool   `query:"unread"`
	Category   string `query:"category"`
	Limit      int    `query:"limit"`
}

// InitValidators registers the notification validators and their translations.
func InitValidators(validate *validator.Validate, uni *ut.UniversalTranslator) {
	_ = validate.RegisterValidation(actionTag, func(fl validator.FieldLevel) bool {
		_, ok := actionRoutes[fl.Field().String()]
		return ok
	})
	core.RegisterCustomTranslation(validate, uni, actionTag, actionText)

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		nn := sl.Current().Interface().(NewNotification)
		if _, known := actionRoutes[nn.ActionType]; !known {
			return // reported by the field validation
		}
		if _, ok := ResolveActionPath(nn.ActionType, nn.ActionEntityID); !ok {
			sl.ReportError(nn.ActionEntityID, "action_entity_id", "ActionEntityID", actionEntityTag, "")
		}
	}, NewNotification{})
	core.RegisterCustomTranslation(validate, uni, actionEntityTag, actionEntText)
}

func isUrgent(priority string) bool {
	p := strings.ToLower(priority)
	return p == PriorityHigh || p == PriorityUrgent
}
