package util

import "os"

// GetEnvOrDefault returns the environment variable value if set, otherwise the default value
func GetEnvOrDefault(env, def string) string {
	if val := os.Getenv(env); val != "" {
		return val
	}
	return def
}

// FirstEnv returns the value of the first non-empty environment variable in names,
// along with the name it was read from. It returns two empty strings if none is set.
func FirstEnv(names ...string) (value, name string) {
	for _, n := range names {
		if val := os.Getenv(n); val != "" {
			return val, n
		}
	}
	return "", ""
}
