package conversation

import (
	"errors"
	"fmt"

	"github.com/m3rciful/newsbot/news/params"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"
)

// ValidationError keeps the conversation in its current state and re-prompts.
type ValidationError struct {
	Message string
	Markup  Markup
}

func (v *ValidationError) Error() string { return "validation: " + v.Message }

func invalid(msg string) *ValidationError { return &ValidationError{Message: msg} }

func invalidWith(msg string, m Markup) *ValidationError {
	return &ValidationError{Message: msg, Markup: m}
}

// Failure is a terminal error with a user-facing message and a short code.
type Failure struct {
	code    string
	message string
	err     error
}

func (f *Failure) Error() string {
	if f.err != nil {
		return f.code + ": " + f.err.Error()
	}
	return f.code
}

func (f *Failure) Unwrap() error { return f.err }

// Code returns the short identifier shown to the user and logged as err_code.
func (f *Failure) Code() string { return f.code }

// Notice is the text sent to the user.
func (f *Failure) Notice() string { return fmt.Sprintf("%s [%s]", f.message, f.code) }

const (
	msgNotRegistered = "You are not registered in the system. Please use the /start command to add yourself into the database."
	msgConstraint    = "There was an integrity error. This could be due to a duplicate entry or invalid reference."
	msgConnection    = "There was an error connecting to the database. Please try again later."
	msgDatabase      = "A database error occurred while processing your request. Please try again later."
	msgNotFound      = "The requested record no longer exists."
	msgTimeout       = "The request timed out. Please try again later."
	msgUnavailable   = "Could not retrieve news right now. Please try again later."
	msgRender        = "Could not build the news document. Please try again later."
	msgInvalidDays   = "Invalid value for -f. Please provide a whole number of days, e.g. /topic_news -f 3."
	msgSend          = "Could not deliver the reply. Please try again later."
	msgInternal      = "Something went wrong. Please try again later."
)

// ErrNotRegistered rejects events from users that never ran /start.
var ErrNotRegistered = errors.New("user not registered")

var errSend = errors.New("reply failed")

func newFailure(code, message string, err error) *Failure {
	return &Failure{code: code, message: message, err: err}
}

// asFailure maps any step error onto a Failure.
func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, ErrNotRegistered):
		return newFailure("not_registered", msgNotRegistered, err)
	case errors.Is(err, store.ErrConstraint):
		return newFailure("db_constraint", msgConstraint, err)
	case errors.Is(err, store.ErrConnection):
		return newFailure("db_connection", msgConnection, err)
	case errors.Is(err, store.ErrNotFound):
		return newFailure("not_found", msgNotFound, err)
	case errors.Is(err, store.ErrDatabase):
		return newFailure("db_error", msgDatabase, err)
	case errors.Is(err, source.ErrTimeout):
		return newFailure("news_timeout", msgTimeout, err)
	case errors.Is(err, source.ErrUnavailable), errors.Is(err, source.ErrMalformed):
		return newFailure("news_unavailable", msgUnavailable, err)
	case errors.Is(err, render.ErrRender):
		return newFailure("render_failed", msgRender, err)
	case errors.Is(err, params.ErrInvalidDays):
		return newFailure("invalid_days", msgInvalidDays, err)
	case errors.Is(err, errSend):
		return newFailure("send_failed", msgSend, err)
	default:
		return newFailure("internal", msgInternal, err)
	}
}
