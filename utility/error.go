package utility

// AppError is a plain application error carrying only its message.
type AppError struct {
	message string
}

func (e *AppError) Error() string {
	return e.message
}

// Err wraps a message into an error value.
func Err(message string) error {
	return &AppError{message: message}
}
