package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	SettingsPath   string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Profile        string
	Verbose        bool
	NoJournal      bool
}

type Settings struct {
	OutputMode       string
	SelectFields     []string
	ResultsOnly      bool
	EnableCommands   []string
	Timeout          time.Duration
	Profile          string
	ProfilesDir      string
	ProfilesLockPath string
	JournalEnabled   bool
	JournalPath      string
	JournalLockPath  string
	LogLevel         string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Timeout  string `yaml:"timeout"`
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log_level"`
	Profiles struct {
		Dir      string `yaml:"dir"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"profiles"`
	Journal struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveSettingsPath(flags.SettingsPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "plain"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "warn"
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cfgDir, err := configDir()
	if err != nil {
		return Settings{}, err
	}
	stateDir, err := stateDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:       "plain",
		Timeout:          30 * time.Second,
		ProfilesDir:      cfgDir,
		ProfilesLockPath: filepath.Join(cfgDir, "profiles.lock"),
		JournalEnabled:   true,
		JournalPath:      filepath.Join(stateDir, "journal.db"),
		JournalLockPath:  filepath.Join(stateDir, "journal.lock"),
		LogLevel:         "warn",
	}, nil
}

func resolveSettingsPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mfi"), nil
}

func stateDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "mfi"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse settings yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("settings timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Profile != "" {
		settings.Profile = cfg.Profile
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Profiles.Dir != "" {
		settings.ProfilesDir = cfg.Profiles.Dir
		settings.ProfilesLockPath = filepath.Join(cfg.Profiles.Dir, "profiles.lock")
	}
	if cfg.Profiles.LockPath != "" {
		settings.ProfilesLockPath = cfg.Profiles.LockPath
	}
	if cfg.Journal.Enabled != nil {
		settings.JournalEnabled = *cfg.Journal.Enabled
	}
	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("MFI_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("MFI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("MFI_PROFILE"); v != "" {
		settings.Profile = v
	}
	if v := os.Getenv("MFI_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("MFI_PROFILES_DIR"); v != "" {
		settings.ProfilesDir = v
		settings.ProfilesLockPath = filepath.Join(v, "profiles.lock")
	}
	if v := os.Getenv("MFI_JOURNAL_PATH"); v != "" {
		settings.JournalPath = v
	}
	if v := os.Getenv("MFI_JOURNAL_LOCK_PATH"); v != "" {
		settings.JournalLockPath = v
	}
	if v := os.Getenv("MFI_NO_JOURNAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.JournalEnabled = !b
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if strings.TrimSpace(flags.Profile) != "" {
		settings.Profile = strings.TrimSpace(flags.Profile)
	}
	if flags.Verbose {
		settings.LogLevel = "debug"
	}
	if flags.NoJournal {
		settings.JournalEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
