package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		source   string
		filePath string
		text     string
		path     string
		kind     string
		speaker  string
		comment  string
		noCount  bool
	)

	cmd := &cobra.Command{
		Use:   "add [key]",
		Short: "Create a new string entry",
		Long:  "Create a new string entry. A random key is generated when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := uuid.NewString()
			if len(args) == 1 {
				key = args[0]
			}

			if !cmd.Flags().Changed("text") {
				var err error
				if text, err = readContent(cmd, filePath); err != nil {
					return err
				}
			}

			e := entry.New(key, entry.Locale(source))
			e.StringPath = path
			e.Kind = kind
			e.Speaker = speaker
			e.Comment = comment
			e.ShouldCount = !noCount
			e.EnsureLocale(e.Source)
			e.UpdateText(e.Source, text, true)

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.catalog.Add(context.Background(), e); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), e.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "en", "Source locale")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Source text (read from --file or stdin when omitted)")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read source text from file instead of stdin")
	cmd.Flags().StringVar(&path, "path", "", "Directory of the entry below the root")
	cmd.Flags().StringVar(&kind, "kind", "", "Entry kind, e.g. dialogue or ui")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker of the line")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Comment for translators")
	cmd.Flags().BoolVar(&noCount, "no-count", false, "Exclude the entry from statistics")

	return cmd
}
