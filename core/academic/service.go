package academic

import (
	"context"
	"fmt"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
)

type (
	Repository interface {
		// CreateRecord returns ErrDuplicate when the client temp id is already known.
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Record, error)
		CountRecords(ctx context.Context, schoolID, module string, exec ...core.DBExecutor) (int, error)
		GetRecord(ctx context.Context, schoolID, module, id string, exec ...core.DBExecutor) (Record, error)
		GetRecordByTempID(ctx context.Context, schoolID, module, tempID string, exec ...core.DBExecutor) (Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		DeleteRecord(ctx context.Context, schoolID, module, id string, exec ...core.DBExecutor) (int, error)
	}

	// SchoolGetter is the part of school.Service the records need for freemium limits.
	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	Service interface {
		// Create stores a new record. A replay with an already known clientTempID returns
		// the existing record and created=false.
		Create(ctx context.Context, schoolID, module string, data Data, clientTempID string) (rec Record, created bool, err error)
		List(ctx context.Context, schoolID, module string, since int64) ([]Record, error)
		Get(ctx context.Context, schoolID, module, id string) (Record, error)
		Patch(ctx context.Context, schoolID, module, id string, patch Data) (Record, error)
		Delete(ctx context.Context, schoolID, module, id string) error
	}

	service struct {
		repo    Repository
		schools SchoolGetter
		limits  core.FreemiumConfig
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schools SchoolGetter, conf *core.Config) Service {
	return &service{repo: repo, schools: schools, limits: conf.Freemium}
}

func (svc *service) Create(ctx context.Context, schoolID, module string, data Data, clientTempID string) (Record, bool, error) {
	if !IsModule(module) {
		return Record{}, false, ErrUnknownModule
	}
	clientTempID = core.CleanString(clientTempID)
	if clientTempID != "" {
		rec, err := svc.repo.GetRecordByTempID(ctx, schoolID, module, clientTempID)
		if err == nil {
			return rec, false, nil
		} else if err != ErrNotFound {
			return Record{}, false, err
		}
	}

	if data == nil {
		data = Data{}
	}
	if err := data.Validate(module, false); err != nil {
		return Record{}, false, err
	}
	if err := svc.checkFreemium(ctx, schoolID, module); err != nil {
		return Record{}, false, err
	}

	now := core.Millis(core.NowUTC())
	rec, err := svc.repo.CreateRecord(ctx, Record{
		SchoolID:     schoolID,
		Module:       module,
		Data:         data,
		ClientTempID: clientTempID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err == ErrDuplicate {
		// lost a race against a concurrent replay
		rec, err = svc.repo.GetRecordByTempID(ctx, schoolID, module, clientTempID)
		return rec, false, err
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (svc *service) checkFreemium(ctx context.Context, schoolID, module string) error {
	var limit int
	switch module {
	case ModuleStudents:
		limit = svc.limits.MaxStudents
	case ModuleClasses:
		limit = svc.limits.MaxClasses
	}
	if limit <= 0 {
		return nil
	}

	sch, err := svc.schools.GetByID(ctx, schoolID)
	if err != nil {
		return err
	}
	if sch.IsPremium() {
		return nil
	}

	cnt, err := svc.repo.CountRecords(ctx, schoolID, module)
	if err != nil {
		return err
	}
	if cnt >= limit {
		msg := fmt.Sprintf("the free plan is limited to %d %s, upgrade to premium", limit, module)
		return core.NewValidationError(ErrFreemiumLimit, core.FieldError{Field: "plan", Error: msg})
	}
	return nil
}

func (svc *service) List(ctx context.Context, schoolID, module string, since int64) ([]Record, error) {
	if !IsModule(module) {
		return nil, ErrUnknownModule
	}
	return svc.repo.QueryRecords(ctx, QueryFilter{SchoolID: schoolID, Module: module, Since: since})
}

func (svc *service) Get(ctx context.Context, schoolID, module, id string) (Record, error) {
	if !IsModule(module) {
		return Record{}, ErrUnknownModule
	}
	return svc.repo.GetRecord(ctx, schoolID, module, id)
}

func (svc *service) Patch(ctx context.Context, schoolID, module, id string, patch Data) (Record, error) {
	rec, err := svc.Get(ctx, schoolID, module, id)
	if err != nil {
		return Record{}, err
	}
	if err = patch.Validate(module, true); err != nil {
		return Record{}, err
	}
	if rec.Data == nil {
		rec.Data = Data{}
	}
	rec.Data.Merge(patch)
	rec.UpdatedAt = core.Millis(core.NowUTC())
	return svc.repo.UpdateRecord(ctx, rec)
}

func (svc *service) Delete(ctx context.Context, schoolID, module, id string) error {
	if !IsModule(module) {
		return ErrUnknownModule
	}
	cnt, err := svc.repo.DeleteRecord(ctx, schoolID, module, id)
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}
