package step

// Config names the installations to use. A nil field means "not requested";
// the body then runs with whatever the base environment provides.
type Config struct {
	Gradle *string `yaml:"gradle,omitempty" json:"gradle,omitempty" jsonschema:"description=Name of a configured Gradle installation"`
	JDK    *string `yaml:"jdk,omitempty" json:"jdk,omitempty" jsonschema:"description=Name of a configured JDK installation"`
}

// Named returns a pointer to name, or nil when name is empty.
func Named(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
