package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

var ErrNotFound = errors.New("school not found")

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, search string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]School, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		UpdateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		Query(ctx context.Context, search string, ordering []core.DBOrdering) ([]School, error)
		GetByID(ctx context.Context, id string) (School, error)
		Update(ctx context.Context, id string, us UpdateSchool) (School, error)
		SetPlan(ctx context.Context, id, plan string) (School, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSchool(ctx, School{
		Name:      ns.Name,
		Type:      ns.Type,
		Language:  ns.Language,
		Plan:      ns.Plan,
		Address:   ns.Address,
		Phone:     ns.Phone,
		Region:    ns.Region,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, search string, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, core.CleanString(search), ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (School, error) {
	if id == "" {
		return School{}, ErrNotFound
	}
	return svc.repo.GetSchool(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch, err := svc.GetByID(ctx, id)
	if err != nil {
		return School{}, err
	}
	sch.Name = us.Name
	sch.Type = us.Type
	sch.Language = us.Language
	sch.Address = us.Address
	sch.Phone = us.Phone
	sch.Region = us.Region
	sch.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *service) SetPlan(ctx context.Context, id, plan string) (School, error) {
	if plan != PlanFree && plan != PlanPremium {
		return School{}, core.NewValidationError(nil, core.FieldError{Field: "plan", Error: "invalid value"})
	}
	sch, err := svc.GetByID(ctx, id)
	if err != nil {
		return School{}, err
	}
	sch.Plan = plan
	sch.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}
