package core

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const envFileName = ".env.profiler"

// Secret variable names. Values never live in config.json.
const (
	EnvHostPassword = "PROFILER_HOST_PASSWORD"
	EnvStoreKeyID   = "PROFILER_STORE_KEY_ID"
	EnvStoreAppKey  = "PROFILER_STORE_APP_KEY"
	EnvHostURL      = "PROFILER_HOST_URL"
)

// EnvResolver resolves secrets and overrides.
// It follows the precedence: process env > ~/.profiler/.env.profiler.
type EnvResolver struct {
	configDir string
}

// NewEnvResolver creates an EnvResolver reading configDir/.env.profiler.
func NewEnvResolver(configDir string) *EnvResolver {
	return &EnvResolver{configDir: configDir}
}

// EnvSource indicates where an env var value was resolved from.
type EnvSource string

const (
	EnvSourceProcess EnvSource = "process"
	EnvSourceFile    EnvSource = "file"
)

// ResolvedEnvVar holds a resolved env var value and its source.
type ResolvedEnvVar struct {
	Name   string
	Value  string
	Source EnvSource
}

// Resolve returns the values for names, each with where it was found.
// Vars not found anywhere are included with an empty Source.
//
// Precedence (highest to lowest):
//  1. Process environment (os.LookupEnv)
//  2. configDir/.env.profiler
func (r *EnvResolver) Resolve(names ...string) []ResolvedEnvVar {
	fileEnv := parseEnvFile(filepath.Join(r.configDir, envFileName))

	results := make([]ResolvedEnvVar, len(names))
	for i, name := range names {
		results[i] = ResolvedEnvVar{Name: name}
		if val, ok := os.LookupEnv(name); ok {
			results[i].Value = val
			results[i].Source = EnvSourceProcess
			continue
		}
		if val, ok := fileEnv[name]; ok {
			results[i].Value = val
			results[i].Source = EnvSourceFile
		}
	}
	return results
}

// Lookup returns the value of a single name and whether it was set.
func (r *EnvResolver) Lookup(name string) (string, bool) {
	v := r.Resolve(name)[0]
	return v.Value, v.Source != ""
}

// Apply fills the secrets and overrides of cfg from the environment.
func (r *EnvResolver) Apply(cfg *Config) {
	if v, ok := r.Lookup(EnvHostURL); ok && v != "" {
		cfg.Host.URL = v
	}
	if v, ok := r.Lookup(EnvHostPassword); ok {
		cfg.Host.Password = v
	}
}

// StoreCredentials returns the object-store key pair. Both are empty when
// neither is set, in which case the SDK's default chain applies.
func (r *EnvResolver) StoreCredentials() (keyID, appKey string) {
	vars := r.Resolve(EnvStoreKeyID, EnvStoreAppKey)
	return strings.TrimSpace(vars[0].Value), strings.TrimSpace(vars[1].Value)
}

// parseEnvFile parses a .env file and returns key-value pairs.
// Returns nil if the file does not exist or cannot be read.
// Supports:
//   - KEY=VALUE
//   - KEY="VALUE" and KEY='VALUE' (outer quotes stripped)
//   - # comments and blank lines
//   - an optional "export " prefix
func parseEnvFile(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	env := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') ||
				(val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}
		if key != "" {
			env[key] = val
		}
	}
	return env
}
