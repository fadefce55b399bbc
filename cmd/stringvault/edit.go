package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newEditCmd(a *app) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "edit <key>",
		Short: "Edit the text of a locale with $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			e, err := s.catalog.Get(ctx, key)
			if err != nil {
				return err
			}

			target := entry.Locale(locale)
			if target == "" {
				target = e.Source
			}
			currentContent := []byte(e.GetText(target))

			tempDir, err := os.MkdirTemp("", "stringvault-edit-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tempDir)

			tempFile := filepath.Join(tempDir, "text.txt")
			if err := os.WriteFile(tempFile, currentContent, 0o600); err != nil {
				return err
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = os.Getenv("VISUAL")
			}
			if editor == "" {
				editor = "vi"
			}

			//nolint:gosec // G204: the editor is chosen by the user
			editorCmd := exec.Command(editor, tempFile)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr

			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("editor exited with error: %w", err)
			}

			editedContent, err := os.ReadFile(tempFile)
			if err != nil {
				return err
			}
			editedContent = []byte(strings.TrimSuffix(string(editedContent), "\n"))

			if sha256.Sum256(currentContent) == sha256.Sum256(editedContent) {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes made")
				return nil
			}

			if _, err := s.catalog.SetText(ctx, key, target, string(editedContent), true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s [%s]\n", key, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to edit (defaults to the source locale)")

	return cmd
}
