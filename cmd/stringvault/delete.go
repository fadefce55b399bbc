package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a string entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			if !force {
				reader := bufio.NewReader(cmd.InOrStdin())
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete '%s'? Its backing file will be removed. (y/N) ", key)
				answer, err := reader.ReadString('\n')
				if err != nil && answer == "" {
					return err
				}

				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
					return nil
				}
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.catalog.Delete(context.Background(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted '%s'\n", key)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}
