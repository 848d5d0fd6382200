package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/client"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/richtext"
	"github.com/spf13/cobra"
)

func (a *cli) lettersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "letters",
		Short: "Manage letters",
	}
	cmd.AddCommand(
		a.listLettersCommand(),
		a.getLetterCommand(),
		a.createLetterCommand(),
		a.updateLetterCommand(),
		a.deleteLetterCommand(),
	)
	return cmd
}

func (a *cli) listLettersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			items, err := apiClient.ListLetters(cmd.Context())
			if err != nil {
				return err
			}
			a.printLetters(items)
			return nil
		},
	}
}

func (a *cli) getLetterCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLetterID(args[0])
			if err != nil {
				return err
			}
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			letter, err := apiClient.GetLetter(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "# %s\n", letter.Title)
			fmt.Fprintf(a.out, "updated %s\n", letter.UpdatedAt.Local().Format(time.RFC1123))
			if letter.GoogleDriveURL != nil {
				fmt.Fprintf(a.out, "drive %s\n", *letter.GoogleDriveURL)
			}
			fmt.Fprintln(a.out)
			if raw {
				fmt.Fprintln(a.out, letter.Content)
			} else {
				fmt.Fprintln(a.out, richtext.PlainText(letter.Content))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored markup instead of plain text")
	return cmd
}

func (a *cli) createLetterCommand() *cobra.Command {
	var title, content, contentFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a letter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readContent(content, contentFile, cmd.Flags().Changed("content"))
			if err != nil {
				return err
			}
			request := client.NewLetter{Content: *body}
			if cmd.Flags().Changed("title") {
				request.Title = &title
			}
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			letter, err := apiClient.CreateLetter(cmd.Context(), request)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created letter %d %q\n", letter.ID, letter.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Letter title")
	cmd.Flags().StringVar(&content, "content", "", "Letter markup")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read letter markup from a file (- for stdin)")
	return cmd
}

func (a *cli) updateLetterCommand() *cobra.Command {
	var title, content, contentFile string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the title or content of a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLetterID(args[0])
			if err != nil {
				return err
			}
			var patch client.LetterPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") || contentFile != "" {
				body, err := readContent(content, contentFile, cmd.Flags().Changed("content"))
				if err != nil {
					return err
				}
				patch.Content = body
			}
			if patch.Title == nil && patch.Content == nil {
				return fmt.Errorf("nothing to update: pass --title, --content or --content-file")
			}
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			letter, err := apiClient.UpdateLetter(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated letter %d %q\n", letter.ID, letter.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New markup")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read new markup from a file (- for stdin)")
	return cmd
}

func (a *cli) deleteLetterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLetterID(args[0])
			if err != nil {
				return err
			}
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			if err := apiClient.DeleteLetter(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted letter %d\n", id)
			return nil
		},
	}
}

func (a *cli) printLetters(items []client.Letter) {
	writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tUPDATED\tDRIVE")
	for _, letter := range items {
		driveID := "-"
		if letter.GoogleDriveID != nil {
			driveID = *letter.GoogleDriveID
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", letter.ID, letter.Title, letter.UpdatedAt.Local().Format(time.DateTime), driveID)
	}
	_ = writer.Flush()
}

func parseLetterID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 63)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid letter id %q", raw)
	}
	return id, nil
}

// readContent picks the inline value or the file contents. Content must come from exactly one source.
func readContent(inline, path string, inlineSet bool) (*string, error) {
	switch {
	case inlineSet && path != "":
		return nil, fmt.Errorf("use either --content or --content-file")
	case inlineSet:
		return &inline, nil
	case path == "":
		return nil, fmt.Errorf("letter content is required: pass --content or --content-file")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	content := string(data)
	return &content, nil
}
