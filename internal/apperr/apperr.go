// Package apperr defines the error taxonomy shared by the clip pipeline.
//
// Every stage failure is an *Error tagged with a Kind. Kinds drive the HTTP
// status and the public message; Diagnostic carries verbatim collaborator
// output (for example ffmpeg stderr) for server-side logs only.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConfiguration
	KindFetch
	KindTranscription
	KindReasoning
	KindInvalidSelection
	KindEmptyTranscript
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindFetch:
		return "fetch"
	case KindTranscription:
		return "transcription"
	case KindReasoning:
		return "reasoning"
	case KindInvalidSelection:
		return "invalid_selection"
	case KindEmptyTranscript:
		return "empty_transcript"
	case KindRender:
		return "render"
	default:
		return "internal"
	}
}

type Error struct {
	Kind       Kind
	Op         string
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String() + " error")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind-only sentinels such as ErrRender.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Diagnostic == "" && t.Kind == e.Kind
}

var (
	ErrInternal         = &Error{Kind: KindInternal}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrFetch            = &Error{Kind: KindFetch}
	ErrTranscription    = &Error{Kind: KindTranscription}
	ErrReasoning        = &Error{Kind: KindReasoning}
	ErrInvalidSelection = &Error{Kind: KindInvalidSelection}
	ErrEmptyTranscript  = &Error{Kind: KindEmptyTranscript}
	ErrRender           = &Error{Kind: KindRender}
)

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify tags err with kind unless it already carries one. A nil err stays nil.
func Classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(kind, op, err)
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// DiagnosticOf returns the first non-empty diagnostic in err's chain.
func DiagnosticOf(err error) string {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Diagnostic != "" {
			return ae.Diagnostic
		}
		err = errors.Unwrap(err)
	}
	return ""
}

func HTTPStatus(err error) int {
	if KindOf(err) == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage is safe to return to callers; it never includes diagnostics.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "URL is required"
	case KindFetch:
		return "Could not download the video."
	case KindRender:
		return "Rendering the clip failed. Check the server logs for details."
	default:
		return "An internal server error occurred. Check the server logs for details."
	}
}
