package notification

import (
	"context"
	"net/mail"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

type (
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	// EmailDispatcher mails high and urgent notifications to users having an email address.
	EmailDispatcher struct {
		users   UserGetter
		schools SchoolGetter
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Dispatcher = (*EmailDispatcher)(nil)

func NewEmailDispatcher(users UserGetter, schools SchoolGetter, mailSvc core.EmailService, conf *core.Config) *EmailDispatcher {
	return &EmailDispatcher{users: users, schools: schools, mailSvc: mailSvc, conf: conf}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, notifs ...Notification) error {
	msgs := make([]*core.EmailMessage, 0, len(notifs))
	for _, n := range notifs {
		if !isUrgent(n.Priority) {
			continue
		}
		usr, err := d.users.GetByID(ctx, n.UserID)
		if err != nil {
			if err == user.ErrNotFound {
				continue
			}
			return err
		}
		if usr.Email == "" || !usr.Active() {
			continue
		}

		lang := "fr"
		if sch, err := d.schools.GetByID(ctx, n.SchoolID); err == nil && sch.Language != "" {
			lang = sch.Language
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      n.Title(lang),
			TemplateName: "notification",
			TemplateData: map[string]string{
				"Name":    usr.Name,
				"Title":   n.Title(lang),
				"Message": n.Message(lang),
				"Path":    n.ActionPath,
			},
		}
		msg.SetFrontendBaseURL(d.conf.FrontendBaseURL)
		msgs = append(msgs, msg)
	}
	if len(msgs) > 0 {
		d.mailSvc.SendMessages(msgs...)
	}
	return nil
}
