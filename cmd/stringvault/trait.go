package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newTraitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trait",
		Short: "Manage traits on locales or entries",
	}
	cmd.AddCommand(newTraitAddCmd(a))
	cmd.AddCommand(newTraitRemoveCmd(a))
	return cmd
}

func newTraitAddCmd(a *app) *cobra.Command {
	var (
		locale  string
		virtual bool
	)

	cmd := &cobra.Command{
		Use:   "add <key> <trait>",
		Short: "Apply a trait to a locale, or to the entry when no locale is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, trait := args[0], args[1]

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			if locale == "" {
				err = s.catalog.AddStringTrait(ctx, key, trait, virtual)
			} else {
				err = s.catalog.AddTrait(ctx, key, entry.Locale(locale), trait)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added trait %s to %s\n", trait, target(key, locale))
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to apply the trait to")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "Mark an entry trait as virtual")

	return cmd
}

func newTraitRemoveCmd(a *app) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "remove <key> <trait>",
		Short: "Remove a trait from a locale, or from the entry when no locale is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, trait := args[0], args[1]

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			if locale == "" {
				err = s.catalog.RemoveStringTrait(ctx, key, trait)
			} else {
				err = s.catalog.RemoveTrait(ctx, key, entry.Locale(locale), trait)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed trait %s from %s\n", trait, target(key, locale))
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to remove the trait from")

	return cmd
}

func target(key, locale string) string {
	if locale == "" {
		return key
	}
	return fmt.Sprintf("%s [%s]", key, locale)
}
