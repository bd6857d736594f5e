package pipeline

// Every error in the taxonomy is terminal for the run: the first failing
// stage halts the pipeline and the failure is surfaced verbatim. Retries are
// a human decision (re-push or re-run), never automatic.

type ConfigurationError struct {
	Detail string
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}

type AuthenticationError struct {
	Detail string
}

func (e AuthenticationError) Error() string {
	return "authentication error: " + e.Detail
}

type PermissionError struct {
	Detail string
}

func (e PermissionError) Error() string {
	return "permission error: " + e.Detail
}

type NetworkError struct {
	Detail string
}

func (e NetworkError) Error() string {
	return "network error: " + e.Detail
}

type ValidationError struct {
	Detail string
}

func (e ValidationError) Error() string {
	return "validation error: " + e.Detail
}

type ConvergenceError struct {
	Detail string
}

func (e ConvergenceError) Error() string {
	return "convergence error: " + e.Detail
}

type TimeoutError struct {
	Detail string
}

func (e TimeoutError) Error() string {
	return "timeout error: " + e.Detail
}
