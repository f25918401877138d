package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

// Plans
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Types used by bulletin detection. Free-form values are accepted too.
const (
	TypePrimaire            = "primaire"
	TypeSecondaireGeneral   = "secondaire-general"
	TypeSecondaireTechnique = "secondaire-technique"
	TypePrimary             = "primary"
	TypeSecondary           = "secondary"
)

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Language  string    `json:"language"`
	Plan      string    `json:"plan"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (s School) IsPremium() bool {
	return s.Plan == PlanPremium
}

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Language string `json:"language" validate:"omitempty,oneof=fr en"`
	Plan     string `json:"plan" validate:"omitempty,oneof=free premium"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Region   string `json:"region"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Type = core.CleanString(ns.Type, true /* lower */)
	ns.Language = core.CleanString(ns.Language, true /* lower */)
	if ns.Language == "" {
		ns.Language = "fr"
	}
	if ns.Plan == "" {
		ns.Plan = PlanFree
	}
	return validate.Struct(ns)
}

// UpdateSchool defines what information may be provided to modify an existing School.
// The plan is changed through Service.SetPlan only.
type UpdateSchool struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Language string `json:"language" validate:"omitempty,oneof=fr en"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Region   string `json:"region"`
}

func (us *UpdateSchool) Validate(orig School, validate *validator.Validate) error {
	fill := func(val *string, origVal string, lower bool) {
		if v := core.CleanString(*val, lower); v != "" {
			*val = v
		} else {
			*val = origVal
		}
	}
	fill(&us.Name, orig.Name, false)
	fill(&us.Type, orig.Type, true)
	fill(&us.Language, orig.Language, true)
	fill(&us.Address, orig.Address, false)
	fill(&us.Phone, orig.Phone, false)
	fill(&us.Region, orig.Region, false)
	return validate.Struct(us)
}
