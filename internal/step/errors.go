package step

import (
	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

// Usage is shown when the step is used without a body.
const Usage = `Make sure your withGradle step includes a block that runs your Gradle build, for example:
> withGradle {
>     sh 'gradle myTask'
> }`

var (
	// ErrNoBody aborts the step before any environment or watch work.
	ErrNoBody = errors.ValidationError("No body to invoke. " + Usage).Fatal().Build()

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.InternalError("step execution already started").Build()

	// ErrStopped is returned when Stop ends the execution.
	ErrStopped = errors.CanceledError("step execution stopped").Build()

	// ErrBodyFailed wraps an error returned by the body.
	ErrBodyFailed = errors.BuildError("step body failed").Build()
)
