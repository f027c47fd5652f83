package credential

import "os"

// EnvironmentReader reads process environment variables.
type EnvironmentReader interface {
	LookupEnv(key string) (string, bool)
}

// ConfigReader reads local configuration files.
type ConfigReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSEnvironment reads the real process environment.
type OSEnvironment struct{}

func (OSEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// OSFiles reads from the local filesystem.
type OSFiles struct{}

func (OSFiles) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// MapEnvironment is an EnvironmentReader over a fixed map.
type MapEnvironment map[string]string

func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
