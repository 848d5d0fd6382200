package main

import (
	"fmt"
	"strconv"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/client"
	"github.com/spf13/cobra"
)

func (a *cli) driveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Export letters to Google Drive",
	}
	cmd.AddCommand(a.driveSaveCommand(), a.driveFilesCommand(), a.driveConsentCommand(), a.driveAuthorizeCommand())
	return cmd
}

func (a *cli) driveSaveCommand() *cobra.Command {
	var fileName string
	var googleDocs bool
	cmd := &cobra.Command{
		Use:   "save <letter-id>",
		Short: "Save a letter to Google Drive",
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
			name := fileName
			if name == "" {
				name = letter.Title
			}
			result, err := apiClient.SaveToDrive(cmd.Context(), client.DriveSave{
				LetterID:            strconv.FormatUint(letter.ID, 10),
				Title:               letter.Title,
				Content:             letter.Content,
				FileName:            name,
				ConvertToGoogleDocs: googleDocs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\n%s\n", result.Message, result.FileURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileName, "file-name", "", "Name of the Drive file (defaults to the letter title)")
	cmd.Flags().BoolVar(&googleDocs, "google-docs", true, "Convert the file to a Google Doc")
	return cmd
}

func (a *cli) driveFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List letters saved to Google Drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			items, err := apiClient.ListDriveFiles(cmd.Context())
			if err != nil {
				return err
			}
			a.printLetters(items)
			return nil
		},
	}
}

func (a *cli) driveConsentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consent",
		Short: "Print the Google Drive consent URL and the state its callback returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			consent, err := apiClient.DriveConsentURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "open %s\nstate %s\n", consent.URL, consent.State)
			return nil
		},
	}
}

func (a *cli) driveAuthorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <code>",
		Short: "Grant Google Drive access with an OAuth authorization code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			user, err := apiClient.AuthorizeDrive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "drive access granted for %s\n", user.Email)
			return nil
		},
	}
}
