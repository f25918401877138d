package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs []Notification, exec ...core.DBExecutor) ([]Notification, error)
		// QueryNotifications lists the unexpired notifications of a user, newest first.
		QueryNotifications(ctx context.Context, userID string, filter QueryFilter, now int64, exec ...core.DBExecutor) ([]Notification, error)
		CountUnread(ctx context.Context, userID string, now int64, exec ...core.DBExecutor) (int, error)
		GetNotification(ctx context.Context, userID, id string, exec ...core.DBExecutor) (Notification, error)
		// MarkRead marks ids (every unread notification when ids is empty) of userID as read.
		MarkRead(ctx context.Context, userID string, ids []string, readAt int64, exec ...core.DBExecutor) (int, error)
		DeleteExpired(ctx context.Context, now int64, exec ...core.DBExecutor) (int, error)
	}

	// Dispatcher delivers freshly created notifications through one channel (push, e-mail...).
	Dispatcher interface {
		Dispatch(ctx context.Context, notifs ...Notification) error
	}

	Service interface {
		Create(ctx context.Context, nn NewNotification) ([]Notification, error)
		Query(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) (int, error)
		PurgeExpired(ctx context.Context) (int, error)
		// PurgeLoop runs PurgeExpired every interval until ctx is done.
		PurgeLoop(ctx context.Context, interval time.Duration)
		AddDispatcher(d Dispatcher)
		NotifyBulletinPublished(ctx context.Context, evt BulletinPublished) error
	}

	service struct {
		repo        Repository
		logger      core.Logger
		ttl         time.Duration
		dispatchers []Dispatcher
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger, conf *core.Config, dispatchers ...Dispatcher) Service {
	return &service{
		repo:        repo,
		logger:      logger,
		ttl:         conf.Notification.DefaultTTL,
		dispatchers: dispatchers,
	}
}

func (svc *service) AddDispatcher(d Dispatcher) {
	svc.dispatchers = append(svc.dispatchers, d)
}

func (svc *service) Create(ctx context.Context, nn NewNotification) ([]Notification, error) {
	path, ok := ResolveActionPath(nn.ActionType, nn.ActionEntityID)
	if !ok {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "action_type", Error: actionText.EN})
	}

	now := core.NowUTC()
	expiresAt := nn.ExpiresAt
	if expiresAt == 0 && svc.ttl > 0 {
		expiresAt = core.Millis(now.Add(svc.ttl))
	}
	priority := nn.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	notifs := make([]Notification, 0, len(nn.UserIDs))
	for _, uid := range nn.UserIDs {
		notifs = append(notifs, Notification{
			UserID:         uid,
			SchoolID:       nn.SchoolID,
			TitleFR:        nn.TitleFR,
			TitleEN:        nn.TitleEN,
			MessageFR:      nn.MessageFR,
			MessageEN:      nn.MessageEN,
			Priority:       priority,
			Category:       nn.Category,
			ActionType:     nn.ActionType,
			ActionEntityID: nn.ActionEntityID,
			CreatedAt:      core.Millis(now),
			ExpiresAt:      expiresAt,
		})
	}

	notifs, err := svc.repo.CreateNotifications(ctx, notifs)
	if err != nil {
		return nil, err
	}
	for i := range notifs {
		notifs[i].ActionPath = path
	}

	for _, d := range svc.dispatchers {
		if err = d.Dispatch(ctx, notifs...); err != nil {
			svc.logger.Error(fmt.Sprintf("dispatching notifications: %v", err), err)
		}
	}
	return notifs, nil
}

func withPaths(notifs []Notification) []Notification {
	for i := range notifs {
		notifs[i].ActionPath, _ = ResolveActionPath(notifs[i].ActionType, notifs[i].ActionEntityID)
	}
	return notifs
}

func (svc *service) Query(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	notifs, err := svc.repo.QueryNotifications(ctx, userID, filter, core.Millis(core.NowUTC()))
	if err != nil {
		return nil, err
	}
	return withPaths(notifs), nil
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID, core.Millis(core.NowUTC()))
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, userID, id)
	if err != nil {
		return Notification{}, err
	}
	if !n.IsRead {
		n.ReadAt = core.Millis(core.NowUTC())
		if _, err = svc.repo.MarkRead(ctx, userID, []string{id}, n.ReadAt); err != nil {
			return Notification{}, err
		}
		n.IsRead = true
	}
	return withPaths([]Notification{n})[0], nil
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkRead(ctx, userID, nil, core.Millis(core.NowUTC()))
}

func (svc *service) PurgeExpired(ctx context.Context) (int, error) {
	return svc.repo.DeleteExpired(ctx, core.Millis(core.NowUTC()))
}

func (svc *service) PurgeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cnt, err := svc.PurgeExpired(ctx)
			if err != nil {
				svc.logger.Error(fmt.Sprintf("purging expired notifications: %v", err), err)
				continue
			}
			if cnt > 0 {
				svc.logger.Info(fmt.Sprintf("purged %d expired notifications", cnt))
			}
		}
	}
}
