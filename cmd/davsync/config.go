package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/davsync/internal/pairstore"
	"github.com/openmined/davsync/internal/remote"
	"github.com/openmined/davsync/internal/remote/s3"
	"github.com/openmined/davsync/internal/remote/webdav"
	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	home, _           = os.UserHomeDir()
	defaultConfigPath = filepath.Join(home, ".davsync", "config.json")
	defaultDataDir    = filepath.Join(home, ".davsync")
	defaultTimeout    = 30 * time.Second
)

var ErrNoServer = errors.New("no server configured, run 'davsync login' first")

// Config is the merged view of flags, DAVSYNC_* env, the config file and
// the credentials saved by login, in that order of precedence.
type Config struct {
	Path         string        `json:"-"`
	DataDir      string        `json:"data_dir"`
	ServerURL    string        `json:"server_url"`
	Login        string        `json:"login"`
	Password     string        `json:"-"`
	MetadataPath string        `json:"metadata_path"`
	Timeout      time.Duration `json:"timeout"`
	Ignore       []string      `json:"ignore,omitempty"`
}

var cfg = &Config{}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Dir(defaultConfigPath))
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("metadata_path", sync.DefaultMetadataPath)
	viper.SetDefault("timeout", defaultTimeout)

	viper.SetEnvPrefix("DAVSYNC")
	viper.AutomaticEnv()

	dataDir, err := utils.ResolvePath(viper.GetString("data_dir"))
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	*cfg = Config{
		Path:         viper.ConfigFileUsed(),
		DataDir:      dataDir,
		ServerURL:    viper.GetString("server_url"),
		Login:        viper.GetString("login"),
		Password:     viper.GetString("password"),
		MetadataPath: viper.GetString("metadata_path"),
		Timeout:      viper.GetDuration("timeout"),
		Ignore:       viper.GetStringSlice("ignore"),
	}
	return nil
}

// withStoredCredentials fills the endpoint fields the config left empty.
// Saved login and password only apply to the server they were saved for,
// and the saved password only to the saved login.
func (c *Config) withStoredCredentials(store *pairstore.Store) error {
	if c.ServerURL != "" && c.Login != "" && c.Password != "" {
		return nil
	}

	creds, err := store.Credentials()
	if errors.Is(err, pairstore.ErrCredentialsMissing) {
		return nil
	}
	if err != nil {
		return err
	}

	if c.ServerURL == "" {
		c.ServerURL = creds.ServerURL
	} else if !sameServer(c.ServerURL, creds.ServerURL) {
		slog.Debug("stored credentials belong to another server, not using them", "server", c.ServerURL)
		return nil
	}

	if c.Login == "" {
		c.Login = creds.Login
	}
	if c.Password == "" && c.Login == creds.Login {
		c.Password = creds.Password
	}
	return nil
}

func sameServer(a, b string) bool {
	norm := func(u string) string {
		return strings.TrimRight(strings.TrimSpace(u), "/")
	}
	return norm(a) == norm(b)
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServer
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := pairstore.NormalizeRemote(c.MetadataPath); err != nil {
		return fmt.Errorf("metadata path: %w", err)
	}
	if s3.IsS3URL(c.ServerURL) {
		s3cfg, err := c.s3Config()
		if err != nil {
			return err
		}
		return s3cfg.Validate()
	}
	return c.webdavConfig().Validate()
}

func (c *Config) webdavConfig() *webdav.Config {
	return &webdav.Config{
		URL:      c.ServerURL,
		Login:    c.Login,
		Password: c.Password,
		Timeout:  c.Timeout,
	}
}

func (c *Config) s3Config() (*s3.Config, error) {
	s3cfg, err := s3.ParseURL(c.ServerURL)
	if err != nil {
		return nil, err
	}
	s3cfg.AccessKey = c.Login
	s3cfg.SecretKey = c.Password
	return s3cfg, nil
}

// openSession builds the transport for the configured endpoint. It does not
// touch the network for WebDAV; the engine probes reachability itself.
func openSession(ctx context.Context, c *Config) (remote.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if s3.IsS3URL(c.ServerURL) {
		s3cfg, err := c.s3Config()
		if err != nil {
			return nil, err
		}
		return s3.New(ctx, s3cfg, c.Timeout)
	}
	return webdav.New(c.webdavConfig())
}
