package notification

import (
	"context"
	"fmt"
)

// BulletinPublished is raised when a bulletin is handed to a student and their parents.
type BulletinPublished struct {
	SchoolID     string
	BulletinID   string
	StudentName  string
	Term         string
	RecipientIDs []string
}

func (svc *service) NotifyBulletinPublished(ctx context.Context, evt BulletinPublished) error {
	if len(evt.RecipientIDs) == 0 {
		return nil
	}
	_, err := svc.Create(ctx, NewNotification{
		UserIDs:        evt.RecipientIDs,
		SchoolID:       evt.SchoolID,
		TitleFR:        "Nouveau bulletin disponible",
		TitleEN:        "New report card available",
		MessageFR:      fmt.Sprintf("Le bulletin de %s pour le %s est disponible.", evt.StudentName, evt.Term),
		MessageEN:      fmt.Sprintf("The %s report card of %s is available.", evt.Term, evt.StudentName),
		Priority:       PriorityHigh,
		Category:       CategoryAcademic,
		ActionType:     ActionViewBulletin,
		ActionEntityID: evt.BulletinID,
	})
	return err
}
