package config

import (
	"fmt"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".jdap"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through
// the config file. Attach request arguments take precedence over the
// values configured here.
type Config struct {
	// DefaultTransport is used when an attach request does not name a
	// transport. Defaults to dt_socket.
	DefaultTransport string `yaml:"default-transport,omitempty"`

	// SourceRoots are directories searched for target-reported source
	// paths, in addition to the roots sent with the attach request.
	SourceRoots []string `yaml:"source-roots"`

	// StackTraceDepth is the maximum number of stack frames returned
	// for a single stackTrace request.
	StackTraceDepth *int `yaml:"stack-trace-depth,omitempty"`
}

// DefaultTransportOrFallback returns the configured default transport
// or dt_socket.
func (c *Config) DefaultTransportOrFallback() string {
	if c != nil && c.DefaultTransport != "" {
		return c.DefaultTransport
	}
	return "dt_socket"
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := os.ReadFile(fullConfigFile)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}

	return &c
}

// SaveConfig will marshal and save the config struct to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	f.Seek(0, os.SEEK_SET)
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the java debug adapter.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an option.

# Transport used when an attach request does not name one.
# default-transport: dt_socket

# Directories searched for target-reported source paths, in addition
# to the roots sent with the attach request.
source-roots: []

# Maximum number of stack frames returned for one stackTrace request.
# stack-trace-depth: 50
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return path.Join(usr.HomeDir, configDir, file), nil
}
