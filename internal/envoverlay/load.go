package envoverlay

import (
	"os"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// LoadFile reads a dotenv file into an EnvMap.
func LoadFile(path string) (EnvMap, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read env file").
			WithContext("path", path).
			Build()
	}
	return EnvMap(values), nil
}

// Base returns the process environment, extended with variables from envFile
// when one is given. Process variables take precedence over the file so an
// explicit export always beats a checked-in default.
func Base(envFile string) (EnvMap, error) {
	process := FromEnviron(os.Environ())
	if envFile == "" {
		return process, nil
	}
	fromFile, err := LoadFile(envFile)
	if err != nil {
		return nil, err
	}
	return Merge(fromFile, process), nil
}
