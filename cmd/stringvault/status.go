package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/git"
	"github.com/vault-md/stringvault/internal/usecase"
)

type statusOutput struct {
	Entries     int                  `json:"entries"`
	Stale       []usecase.StaleTrait `json:"stale"`
	Uncommitted []string             `json:"uncommitted,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stale traits and uncommitted entries",
		Long:  "Scan the root and report traits whose text snapshot no longer matches the current text. When the root is inside a git repository, entries with uncommitted changes are listed too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.catalog.Scan(context.Background())
			if err != nil {
				return err
			}

			status := statusOutput{
				Entries: len(entries),
				Stale:   usecase.StaleTraits(entries),
			}
			if status.Stale == nil {
				status.Stale = []usecase.StaleTrait{}
			}
			if a.backend == backendFiles {
				if status.Uncommitted, err = uncommittedKeys(s.root, entries); err != nil {
					return err
				}
			}

			if format == "json" {
				return outputJSON(cmd, status)
			}
			outputStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func uncommittedKeys(root string, entries []*entry.StringEntry) ([]string, error) {
	if !git.GetInfo(root).IsGitRepo {
		return nil, nil
	}
	files, err := git.Uncommitted(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read git status: %w", err)
	}

	changed := make(map[string]struct{}, len(files))
	for _, f := range files {
		changed[resolvePath(f)] = struct{}{}
	}
	var keys []string
	for _, e := range entries {
		if _, ok := changed[resolvePath(e.Origin.AbsolutePath)]; ok {
			keys = append(keys, e.Key)
		}
	}
	return keys, nil
}

// resolvePath returns p as an absolute path with symlinks evaluated. Paths
// that cannot be resolved are only made absolute.
func resolvePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return p
}

func outputStatus(cmd *cobra.Command, status statusOutput) {
	out := cmd.OutOrStdout()
	if len(status.Stale) == 0 {
		fmt.Fprintf(out, "%d entries, no stale traits\n", status.Entries)
	} else {
		width := max((getTerminalWidth()-40)/2, 15)
		t := newTable(cmd)
		t.AppendHeader(table.Row{"Key", "Locale", "Trait", "Applied To", "Current"})
		for _, st := range status.Stale {
			locale := string(st.Locale)
			if locale == "" {
				locale = "(entry)"
			}
			t.AppendRow(table.Row{st.Key, locale, st.Trait, singleLine(st.Snapshot, width), singleLine(st.Current, width)})
		}
		t.Render()
	}

	if len(status.Uncommitted) > 0 {
		fmt.Fprintf(out, "\nUncommitted entries:\n")
		for _, key := range status.Uncommitted {
			fmt.Fprintf(out, "  %s\n", key)
		}
	}
}
