package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	ScreenName              string  `json:"screenName"`
	ScreenApp               string  `json:"screenApp"`
	Brand                   string  `json:"brand"`
	Model                   string  `json:"model"`
	EnableAutoplayOnConnect bool    `json:"enableAutoplayOnConnect"`
	Listen                  string  `json:"listen"`
	LaunchListen            string  `json:"launchListen"`
	InboundRatePerSecond    float64 `json:"inboundRatePerSecond"`
	Debug                   bool    `json:"debug"`

	path string
}

// Default returns the settings written on first run.
func Default() *Config {
	return &Config{
		ScreenName:              "YouTube on Go",
		ScreenApp:               "ytcr",
		Brand:                   "Generic",
		Model:                   "SmartTV",
		EnableAutoplayOnConnect: true,
		Listen:                  "127.0.0.1:8099",
		LaunchListen:            "127.0.0.1:8098",
		InboundRatePerSecond:    20,
	}
}

// GetAppConfig loads the settings file under the user config dir.
func GetAppConfig() (*Config, error) {
	path, err := appPath()
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to access config path due to error %w:", err)
	}

	return Load(path)
}

// Load reads the settings at path, creating it with defaults when absent.
// Keys missing from the file keep their default value.
func Load(path string) (*Config, error) {
	cfgfile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("Load: failed to create default path due to error %w:", err)
			}

			conf := Default()
			conf.path = path
			if err := conf.SaveAppConfig(); err != nil {
				return nil, fmt.Errorf("Load: failed to create default config due to error %w:", err)
			}

			return conf, nil
		}

		return nil, fmt.Errorf("Load: failed to open config due to error %w:", err)
	}
	defer cfgfile.Close()

	conf := Default()
	if err := json.NewDecoder(cfgfile).Decode(conf); err != nil {
		return nil, fmt.Errorf("Load: failed to decode config due to error %w:", err)
	}
	conf.path = path

	return conf, nil
}

// Path returns the file the config was loaded from.
func (s *Config) Path() string {
	return s.path
}

func appPath() (string, error) {
	oscfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config file due to error %w:", err)
	}

	return filepath.Join(oscfg, "ytcr", "settings.json"), nil
}

func (s *Config) SaveAppConfig() error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to marshal json due to error %w:", err)
	}

	path := s.path
	if path == "" {
		if path, err = appPath(); err != nil {
			return fmt.Errorf("SaveAppConfig: failed to access config path due to error %w:", err)
		}
	}

	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("SaveAppConfig: failed save config due to error %w:", err)
	}

	return nil
}
