package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var readPasswordFunc = term.ReadPassword

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the token and school",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.monitor.Online() {
					return errors.New("server unreachable, cannot log in")
				}
				if password == "" {
					fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
					pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
					fmt.Fprintln(cmd.ErrOrStderr())
					if err != nil {
						return errors.Wrap(err, "reading password")
					}
					password = strings.TrimSpace(string(pwd))
				}

				token, err := a.api.Login(ctx, args[0], password)
				if err != nil {
					return errors.Wrap(err, "logging in")
				}
				if err = forgetResponses(ctx, a); err != nil {
					return err
				}
				if err = a.store.SetMeta(ctx, metaToken, token); err != nil {
					return err
				}
				sch, err := a.api.CurrentSchool(ctx)
				if err != nil {
					return errors.Wrap(err, "fetching current school")
				}
				if err = a.store.SetMeta(ctx, metaSchoolID, sch.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in to %s (%s)\n", sch.Name, sch.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, prompted when empty")
	return cmd
}

// forgetResponses drops the cached HTTP responses, which belong to the previous account.
func forgetResponses(ctx context.Context, a *app) error {
	n, err := a.store.PurgeCache(ctx)
	if err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("dropped %d cached responses", n))
	return nil
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token, local records and queue are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.store.SetMeta(ctx, metaToken, ""); err != nil {
					return err
				}
				if err := forgetResponses(ctx, a); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}
