package service

// ErrRunQueueFull is returned when a target's bounded run queue cannot
// accept another run.
type ErrRunQueueFull struct{}

func (e ErrRunQueueFull) Error() string {
	return "run queue is full"
}

func NewErrRunQueueFull() *ErrRunQueueFull {
	return &ErrRunQueueFull{}
}

// RunCancelError marks a run that ended because the user cancelled it,
// as opposed to a stage failing on its own.
type RunCancelError struct {
	Message string
}

func (rce RunCancelError) Error() string {
	return rce.Message
}
