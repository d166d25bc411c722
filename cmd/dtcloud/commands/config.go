package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fivetwenty-io/dtcloud/internal/auth"
	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtclient"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	defaultProfileName = "default"
	profilesKey        = "profiles"
	currentProfileKey  = "current_profile"
)

// Config represents the CLI configuration.
type Config struct {
	CurrentProfile string              `json:"current_profile,omitempty" yaml:"current_profile,omitempty"`
	Output         string              `json:"output,omitempty"          yaml:"output,omitempty"`
	Profiles       map[string]*Profile `json:"profiles,omitempty"        yaml:"profiles,omitempty"`
}

// Profile holds endpoints and credentials for one account.
type Profile struct {
	API            string     `json:"api,omitempty"              yaml:"api,omitempty"`
	Emulator       string     `json:"emulator,omitempty"         yaml:"emulator,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	Project        string     `json:"project,omitempty"          yaml:"project,omitempty"`
	Organization   string     `json:"organization,omitempty"     yaml:"organization,omitempty"`
}

// masked returns a copy safe to print.
func (p *Profile) masked() *Profile {
	masked := *p
	if masked.ClientSecret != "" {
		masked.ClientSecret = constants.MaskedSecret
	}

	if masked.Token != "" {
		masked.Token = constants.MaskedSecret
	}

	return &masked
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage dtcloud CLI profiles, endpoints and credentials",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigSetCredentialsCommand())
	cmd.AddCommand(newConfigUseCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			shown := &Config{
				CurrentProfile: activeProfileName(config),
				Output:         config.Output,
				Profiles:       make(map[string]*Profile, len(config.Profiles)),
			}

			for name, profile := range config.Profiles {
				shown.Profiles[name] = profile.masked()
			}

			return renderOutput(cmd.OutOrStdout(), shown, func(out io.Writer) error {
				return displayConfigTable(out, shown)
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value of the active profile.

Profile keys: api, emulator, token_url, client_id, token, project, organization.
Global keys: output, current_profile.`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			shown := args[1]
			if args[0] == "token" {
				shown = constants.MaskedSecret
			}

			return outputConfigUpdateResult(cmd.OutOrStdout(), "Set", args[0], shown, activeProfileName(config))
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], "")
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			return outputConfigUpdateResult(cmd.OutOrStdout(), "Unset", args[0], "", activeProfileName(config))
		},
	}
}

func newConfigSetCredentialsCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		tokenURL     string
	)

	cmd := &cobra.Command{
		Use:   "set-credentials",
		Short: "Store service account credentials",
		Long: `Store a service account key in the active profile. Tokens are obtained
with the OAuth2 client credentials grant and cached in the profile.
The secret is prompted for when not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientSecret == "" {
				secret, err := promptSecret(cmd.ErrOrStderr(), "Client secret: ")
				if err != nil {
					return err
				}

				clientSecret = secret
			}

			config := loadConfig()
			name := activeProfileName(config)
			profile := ensureProfile(config, name)

			profile.ClientID = clientID
			profile.ClientSecret = clientSecret
			profile.TokenURL = tokenURL
			profile.Token = ""
			profile.TokenExpiresAt = nil

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			return outputConfigUpdateResult(cmd.OutOrStdout(), "Set", "client_id", clientID, name)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "service account key ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "service account key secret")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token endpoint (default: platform identity endpoint)")
	_ = cmd.MarkFlagRequired("client-id")

	return cmd
}

func newConfigUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use PROFILE",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if _, ok := config.Profiles[args[0]]; !ok {
				return fmt.Errorf("%w: %s", constants.ErrProfileNotFound, args[0])
			}

			config.CurrentProfile = args[0]

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			return outputConfigUpdateResult(cmd.OutOrStdout(), "Set", currentProfileKey, args[0], "")
		},
	}
}

func promptSecret(out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec

	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--client-secret is required when stdin is not a terminal: %w", constants.ErrNoCredentials)
	}

	_, _ = fmt.Fprint(out, prompt)

	secret, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}

func loadConfig() *Config {
	config := &Config{
		CurrentProfile: viper.GetString(currentProfileKey),
		Output:         viper.GetString("output"),
		Profiles:       make(map[string]*Profile),
	}

	for name, raw := range viper.GetStringMap(profilesKey) {
		if profileMap, ok := raw.(map[string]interface{}); ok {
			config.Profiles[name] = parseProfile(profileMap)
		}
	}

	return config
}

// parseProfile parses a profile from its map form.
func parseProfile(profileMap map[string]interface{}) *Profile {
	profile := &Profile{}

	fields := map[string]*string{
		"api":           &profile.API,
		"emulator":      &profile.Emulator,
		"token_url":     &profile.TokenURL,
		"client_id":     &profile.ClientID,
		"client_secret": &profile.ClientSecret,
		"token":         &profile.Token,
		"project":       &profile.Project,
		"organization":  &profile.Organization,
	}

	for key, field := range fields {
		if value, ok := profileMap[key].(string); ok {
			*field = value
		}
	}

	profile.TokenExpiresAt = parseTimestamp(profileMap["token_expires_at"])
	profile.LastRefreshed = parseTimestamp(profileMap["last_refreshed"])

	return profile
}

// parseTimestamp accepts RFC 3339 strings and values already decoded as time.
func parseTimestamp(raw interface{}) *time.Time {
	switch value := raw.(type) {
	case time.Time:
		return &value
	case string:
		if value == "" {
			return nil
		}

		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil
		}

		return &t
	default:
		return nil
	}
}

func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".dtcloud")

	err = os.MkdirAll(configDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Keep viper in step with the file for the rest of the process.
	viper.SetConfigFile(configFile)
	_ = viper.ReadInConfig()

	return nil
}

// activeProfileName picks --profile, then current_profile, then "default".
func activeProfileName(config *Config) string {
	if name := viper.GetString("profile"); name != "" {
		return name
	}

	if config.CurrentProfile != "" {
		return config.CurrentProfile
	}

	return defaultProfileName
}

func ensureProfile(config *Config, name string) *Profile {
	if config.Profiles == nil {
		config.Profiles = make(map[string]*Profile)
	}

	profile, ok := config.Profiles[name]
	if !ok {
		profile = &Profile{}
		config.Profiles[name] = profile
	}

	if config.CurrentProfile == "" {
		config.CurrentProfile = name
	}

	return profile
}

// activeProfile returns the selected profile. A missing default profile is
// treated as empty; a missing named profile is an error.
func activeProfile(config *Config) (string, *Profile, error) {
	name := activeProfileName(config)

	profile, ok := config.Profiles[name]
	if ok {
		return name, profile, nil
	}

	if name == defaultProfileName && viper.GetString("profile") == "" {
		return name, &Profile{}, nil
	}

	return "", nil, fmt.Errorf("%w: %s", constants.ErrProfileNotFound, name)
}

// setConfigValue sets a global or profile key. An empty value clears it.
func setConfigValue(config *Config, key, value string) error {
	switch key {
	case "output":
		if value != "" && value != constants.FormatTable && value != constants.FormatJSON && value != constants.FormatYAML {
			return fmt.Errorf("%w: %s", constants.ErrInvalidOutput, value)
		}

		config.Output = value

		return nil
	case currentProfileKey:
		config.CurrentProfile = value

		return nil
	}

	handler, ok := getProfileConfigHandler(key)
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	handler(ensureProfile(config, activeProfileName(config)), value)

	return nil
}

// getProfileConfigHandler returns the setter for a profile key.
func getProfileConfigHandler(key string) (func(*Profile, string), bool) {
	handlers := map[string]func(*Profile, string){
		"api":          func(p *Profile, v string) { p.API = v },
		"emulator":     func(p *Profile, v string) { p.Emulator = v },
		"token_url":    func(p *Profile, v string) { p.TokenURL = v },
		"client_id":    func(p *Profile, v string) { p.ClientID = v },
		"project":      func(p *Profile, v string) { p.Project = v },
		"organization": func(p *Profile, v string) { p.Organization = v },
		"token": func(p *Profile, v string) {
			p.Token = v
			p.TokenExpiresAt = nil
		},
	}
	handler, exists := handlers[key]

	return handler, exists
}

// CreateClient builds a client from flags, environment and the active profile.
func CreateClient(ctx context.Context) (dtcloud.Client, error) {
	config := loadConfig()

	name, profile, err := activeProfile(config)
	if err != nil {
		return nil, err
	}

	logger := newCLILogger()

	credentials, err := buildCredentials(name, profile, logger)
	if err != nil {
		return nil, err
	}

	baseURL := viper.GetString("api")
	if baseURL == "" {
		baseURL = profile.API
	}

	return dtclient.New(ctx, &dtcloud.Config{
		BaseURL:     baseURL,
		EmulatorURL: profile.Emulator,
		Credentials: credentials,
		Logger:      logger,
		Debug:       viper.GetBool("verbose"),
		UserAgent:   "dtcloud-cli",
	})
}

// buildCredentials prefers an explicit --token or DTCLOUD_TOKEN, then the
// profile's service account key, then a token stored in the profile.
func buildCredentials(name string, profile *Profile, logger dtcloud.Logger) (dtcloud.CredentialProvider, error) {
	if token := viper.GetString("token"); token != "" {
		return dtclient.StaticToken(token), nil
	}

	if profile.ClientID != "" && profile.ClientSecret != "" {
		tokenURL := profile.TokenURL
		if tokenURL == "" {
			tokenURL = constants.DefaultTokenURL
		}

		source := auth.NewClientCredentialsProvider(&clientcredentials.Config{
			ClientID:     profile.ClientID,
			ClientSecret: profile.ClientSecret,
			TokenURL:     tokenURL,
		})

		var expiry time.Time
		if profile.TokenExpiresAt != nil {
			expiry = *profile.TokenExpiresAt
		}

		provider := auth.NewConfigTokenProvider(source, NewConfigPersister(), name, profile.Token, expiry)
		provider.OnPersistError(func(err error) {
			logger.Warn("Failed to cache token", map[string]interface{}{"profile": name, "error": err.Error()})
		})

		return provider, nil
	}

	if profile.Token != "" {
		return dtclient.StaticToken(profile.Token), nil
	}

	return nil, constants.ErrNoCredentials
}

// resolveProject returns --project, DTCLOUD_PROJECT or the profile default.
func resolveProject() (string, error) {
	if project := viper.GetString("project"); project != "" {
		return project, nil
	}

	_, profile, err := activeProfile(loadConfig())
	if err != nil {
		return "", err
	}

	if profile.Project == "" {
		return "", constants.ErrProjectRequired
	}

	return profile.Project, nil
}

func displayConfigTable(out io.Writer, config *Config) error {
	err := renderProperties(out, [][]string{
		{"Current Profile", config.CurrentProfile},
		{"Output", valueOrNA(config.Output)},
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, buildProfileRow(name, config.Profiles[name], name == config.CurrentProfile))
	}

	if len(rows) == 0 {
		_, _ = io.WriteString(out, "No profiles configured\n")

		return nil
	}

	return renderTable(out, []string{"Profile", "API", "Project", "Client ID", "Token", "Token Expires", "Current"}, rows)
}

func buildProfileRow(name string, profile *Profile, current bool) []string {
	expires := constants.NotAvailable
	if profile.TokenExpiresAt != nil {
		expires = formatTime(*profile.TokenExpiresAt)
	}

	indicator := ""
	if current {
		indicator = "*"
	}

	api := profile.API
	if api == "" {
		api = constants.DefaultBaseURL
	}

	return []string{name, api, valueOrNA(profile.Project), valueOrNA(profile.ClientID), valueOrNA(profile.Token), expires, indicator}
}

// outputConfigUpdateResult outputs configuration update results in the requested format.
func outputConfigUpdateResult(out io.Writer, action, key, value, profile string) error {
	result := map[string]string{
		"action": action,
		"key":    key,
	}

	if value != "" {
		result["value"] = value
	}

	if profile != "" {
		result["profile"] = profile
	}

	return renderOutput(out, result, func(out io.Writer) error {
		rows := [][]string{{"Action", action}, {"Key", key}}
		if value != "" {
			rows = append(rows, []string{"Value", value})
		}

		if profile != "" {
			rows = append(rows, []string{"Profile", profile})
		}

		return renderProperties(out, rows)
	})
}
