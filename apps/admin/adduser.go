package main

import (
	"context"
	"fmt"
	"time"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

type addUserParams struct {
	name, uname, email, schoolID string
	roles                        []string
	isAdmin                      bool
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(params addUserParams, pwd string) error {
	ctx := context.Background()
	uname := core.CleanString(params.uname, true /* lower */)
	email := core.CleanString(params.email, true /* lower */)
	now := time.Now().UTC()

	for _, role := range params.roles {
		if user.RolePriority(role) == 0 {
			return fmt.Errorf("unknown role %q", role)
		}
	}
	if params.schoolID != "" {
		if _, err := cli.schRepo.GetSchool(ctx, params.schoolID); err != nil {
			return err
		}
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name := core.CleanString(params.name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
		if usr.Name == "" {
			usr.Name = email
		}
	}
	if params.schoolID != "" {
		usr.SchoolID = params.schoolID
	}
	if params.isAdmin {
		usr.Roles = user.AllRoles
	} else if len(params.roles) > 0 {
		usr.Roles = params.roles
	}
	usr.SetActive(true)
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
