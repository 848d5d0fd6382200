package main

import (
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/client"
	"github.com/spf13/cobra"
)

func (a *cli) loginCommand() *cobra.Command {
	var identity client.Identity
	var idToken string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			user, err := apiClient.SignIn(cmd.Context(), identity, idToken)
			if err != nil {
				return err
			}
			if err := saveSession(a.viper.GetString("session.file"), apiClient.Cookies()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "signed in as %s <%s> (id %d)\n", user.Name, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UID, "uid", "", "Google account id")
	cmd.Flags().StringVar(&identity.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&identity.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&identity.PhotoURL, "photo-url", "", "Profile picture URL")
	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token, required when the server verifies tokens")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			if err := apiClient.SignOut(cmd.Context()); err != nil && !client.IsStatus(err, http.StatusUnauthorized) {
				return err
			}
			if err := clearSession(a.viper.GetString("session.file")); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "signed out")
			return nil
		},
	}
}

func (a *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := a.newClient()
			if err != nil {
				return err
			}
			user, err := apiClient.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d\t%s\t%s\tdrive access: %t\n", user.ID, user.Name, user.Email, user.HasDriveAccess)
			return nil
		},
	}
}
