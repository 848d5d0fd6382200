package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "INKWELL"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the state shared by every subcommand.
type cli struct {
	viper *viper.Viper
	out   io.Writer
}

func newRootCommand(out io.Writer) *cobra.Command {
	app := &cli{viper: newCLIViper(), out: out}

	rootCmd := &cobra.Command{
		Use:           "inkwell",
		Short:         "Command line client for the Inkwell letter editor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("api-url", app.viper.GetString("api.url"), "Base URL of the Inkwell API")
	rootCmd.PersistentFlags().String("session-file", app.viper.GetString("session.file"), "File the session cookie is kept in")
	mustBind(app.viper, "api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	mustBind(app.viper, "session.file", rootCmd.PersistentFlags().Lookup("session-file"))

	rootCmd.AddCommand(
		app.loginCommand(),
		app.logoutCommand(),
		app.whoamiCommand(),
		app.lettersCommand(),
		app.driveCommand(),
		app.editorCommand(),
	)
	return rootCmd
}

func newCLIViper() *viper.Viper {
	cliViper := viper.New()
	cliViper.SetEnvPrefix(envPrefix)
	cliViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cliViper.AutomaticEnv()
	cliViper.SetDefault("api.url", "http://localhost:8080")
	cliViper.SetDefault("session.file", defaultSessionFile())
	return cliViper
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".inkwell-session.json"
	}
	return filepath.Join(dir, "inkwell", "session.json")
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// newClient builds an API client with the persisted session restored.
func (a *cli) newClient() (*client.Client, error) {
	apiClient, err := client.New(client.Config{BaseURL: a.viper.GetString("api.url")})
	if err != nil {
		return nil, err
	}
	cookies, err := loadSession(a.viper.GetString("session.file"))
	if err != nil {
		return nil, err
	}
	apiClient.SetCookies(cookies)
	return apiClient, nil
}
