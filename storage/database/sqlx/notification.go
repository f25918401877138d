package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
)

const notificationColumns = `id, user_id, school_id, title_fr, title_en, message_fr, message_en, priority, category,
	action_type, action_entity_id, is_read, read_at, created_at, expires_at`

type notificationRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	SchoolID       null.String `db:"school_id"`
	TitleFR        string      `db:"title_fr"`
	TitleEN        string      `db:"title_en"`
	MessageFR      string      `db:"message_fr"`
	MessageEN      string      `db:"message_en"`
	Priority       string      `db:"priority"`
	Category       string      `db:"category"`
	ActionType     string      `db:"action_type"`
	ActionEntityID string      `db:"action_entity_id"`
	IsRead         bool        `db:"is_read"`
	ReadAt         null.Int64  `db:"read_at"`
	CreatedAt      int64       `db:"created_at"`
	ExpiresAt      null.Int64  `db:"expires_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:             r.ID,
		UserID:         r.UserID,
		SchoolID:       r.SchoolID.String,
		TitleFR:        r.TitleFR,
		TitleEN:        r.TitleEN,
		MessageFR:      r.MessageFR,
		MessageEN:      r.MessageEN,
		Priority:       r.Priority,
		Category:       r.Category,
		ActionType:     r.ActionType,
		ActionEntityID: r.ActionEntityID,
		IsRead:         r.IsRead,
		ReadAt:         r.ReadAt.Int64,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt.Int64,
	}
}

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{repository{exec: exec}}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification, exec ...core.DBExecutor) ([]notification.Notification, error) {
	exe := repo.getExec(exec)
	for i := range notifs {
		n := &notifs[i]
		n.ID = uuid.New().String()
		_, err := execCount(ctx, exe,
			"INSERT INTO unified_notifications ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			n.ID, n.UserID, null.NewString(n.SchoolID, n.SchoolID != ""), n.TitleFR, n.TitleEN, n.MessageFR, n.MessageEN,
			n.Priority, n.Category, n.ActionType, n.ActionEntityID, n.IsRead,
			null.NewInt64(n.ReadAt, n.ReadAt != 0), n.CreatedAt, null.NewInt64(n.ExpiresAt, n.ExpiresAt != 0))
		if err != nil {
			return nil, errors.Wrap(err, "inserting notification")
		}
	}
	return notifs, nil
}

func unexpired(w *where, userID string, now int64) {
	w.add("user_id = ?", userID)
	w.add("(expires_at IS NULL OR expires_at > ?)", now)
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, filter notification.QueryFilter, now int64, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var w where
	unexpired(&w, userID, now)
	if filter.UnreadOnly {
		w.add("is_read = ?", false)
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}

	q := "SELECT " + notificationColumns + " FROM unified_notifications" + w.String() + " ORDER BY created_at DESC, id ASC"
	args := w.args
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []notificationRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.notification())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string, now int64, exec ...core.DBExecutor) (int, error) {
	var w where
	unexpired(&w, userID, now)
	w.add("is_read = ?", false)

	var cnt int
	if err := get(ctx, repo.getExec(exec), &cnt, "SELECT COUNT(*) FROM unified_notifications"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return cnt, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, userID, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	var row notificationRow
	err := get(ctx, repo.getExec(exec), &row,
		"SELECT "+notificationColumns+" FROM unified_notifications WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "finding notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, userID string, ids []string, readAt int64, exec ...core.DBExecutor) (int, error) {
	q := "UPDATE unified_notifications SET is_read = ?, read_at = ? WHERE user_id = ? AND is_read = ?"
	args := []interface{}{true, readAt, userID, false}
	if len(ids) > 0 {
		var err error
		if q, args, err = in(q+" AND id IN (?)", append(args, ids)...); err != nil {
			return 0, errors.Wrap(err, "marking notifications read")
		}
	}
	cnt, err := execCount(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return cnt, nil
}

func (repo notificationRepository) DeleteExpired(ctx context.Context, now int64, exec ...core.DBExecutor) (int, error) {
	cnt, err := execCount(ctx, repo.getExec(exec),
		"DELETE FROM unified_notifications WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired notifications")
	}
	return cnt, nil
}
