package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/openmined/davsync/internal/pairstore"
	"github.com/openmined/davsync/internal/remote"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
}

type loginOpts struct {
	server    string
	login     string
	password  string
	skipCheck bool
	quiet     bool
}

func newLoginCmd() *cobra.Command {
	var opts loginOpts

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the server address and credentials",
		Long: `Save the server address and credentials used by check and sync.

The server is a WebDAV url (https://host/dav) or an S3 bucket
(s3://bucket/prefix?region=eu-west-1), in which case login and password are
the access key pair. Missing values are asked for when stdin is a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := pairstore.Credentials{
				ServerURL: strings.TrimSpace(opts.server),
				Login:     opts.login,
				Password:  opts.password,
			}

			verify := func(c pairstore.Credentials) error {
				if opts.skipCheck {
					return checkCredentialsOffline(c)
				}
				return checkCredentials(cmd.Context(), c)
			}

			complete := creds.ServerURL != "" && creds.Login != "" && creds.Password != ""
			if !complete {
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return fmt.Errorf("--server, --login and --password are required without a terminal")
				}
				entered, err := RunLoginTUI(LoginTUIOpts{
					ServerURL:     creds.ServerURL,
					Login:         creds.Login,
					DataDir:       cfg.DataDir,
					SubmitHandler: verify,
				})
				if err != nil {
					return err
				}
				creds = entered
			} else if err := verify(creds); err != nil {
				return err
			}

			err := withPairStore(func(store *pairstore.Store) error {
				return store.SaveCredentials(creds)
			})
			if err != nil {
				return err
			}

			if !opts.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("logged in"), creds)
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&opts.server, "server", "s", "", "WebDAV url or s3:// bucket")
	cmd.Flags().StringVarP(&opts.login, "login", "l", "", "user name or access key")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password or secret key")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "save without contacting the server")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable output")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairStore(func(store *pairstore.Store) error {
				return store.DeleteCredentials()
			})
		},
	}
}

func credentialsConfig(c pairstore.Credentials) *Config {
	return &Config{
		DataDir:      cfg.DataDir,
		ServerURL:    c.ServerURL,
		Login:        c.Login,
		Password:     c.Password,
		MetadataPath: cfg.MetadataPath,
		Timeout:      cfg.Timeout,
	}
}

func checkCredentialsOffline(c pairstore.Credentials) error {
	return credentialsConfig(c).Validate()
}

// checkCredentials opens a session and probes the root.
func checkCredentials(ctx context.Context, c pairstore.Credentials) error {
	session, err := openSession(ctx, credentialsConfig(c))
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Ping(ctx); err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			return fmt.Errorf("can't open connection: login or password rejected by %s: %w", c.ServerURL, err)
		}
		return fmt.Errorf("can't open connection: %w", err)
	}
	return nil
}
