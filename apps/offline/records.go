package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

func parseData(arg string) (academic.Data, error) {
	var data academic.Data
	if err := json.Unmarshal([]byte(arg), &data); err != nil {
		return nil, errors.Wrap(err, "decoding record JSON")
	}
	if data == nil {
		return nil, errors.New("record JSON must be an object")
	}
	return data, nil
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <module>",
		Short: "Print the local records of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				coll, err := a.collection(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := coll.Items(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <module>",
		Short: "Merge the server records of a module into the local ones and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				coll, err := a.collection(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := coll.Refresh(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "create <module> <json>",
		Short:   "Create a record, sent right away when online",
		Example: `  educafric-offline create classes '{"name": "6e A", "level": "6e"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				coll, err := a.collection(ctx, args[0])
				if err != nil {
					return err
				}
				rec, err := coll.Create(ctx, data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "update <module> <id> <json>",
		Short:   "Merge fields into a record, null removes a field",
		Example: `  educafric-offline update students temp_42 '{"class": "6e B"}'`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				coll, err := a.collection(ctx, args[0])
				if err != nil {
					return err
				}
				rec, err := coll.Update(ctx, args[1], data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <module> <id>",
		Short: "Remove a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				coll, err := a.collection(ctx, args[0])
				if err != nil {
					return err
				}
				if err = coll.Remove(ctx, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
