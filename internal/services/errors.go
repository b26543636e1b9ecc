package services

import (
  "errors"
  "sort"
  "strings"
)

var (
  ErrInvalidInput       = errors.New("invalid input")
  ErrNotFound           = errors.New("not found")
  ErrUnauthenticated    = errors.New("authentication credentials were not provided or are invalid")
  ErrInvalidCredentials = errors.New("invalid credentials")
  ErrGenerationFailure  = errors.New("response generation failed")
)

// InputError is a missing or empty required input. It matches ErrInvalidInput.
type InputError struct {
  Message string
}

func (e *InputError) Error() string {
  return e.Message
}

func (e *InputError) Is(target error) bool {
  return target == ErrInvalidInput
}

// GenerationError wraps a generator failure. It matches ErrGenerationFailure.
type GenerationError struct {
  Cause error
}

func (e *GenerationError) Error() string {
  return "failed to generate answer: " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error {
  return e.Cause
}

func (e *GenerationError) Is(target error) bool {
  return target == ErrGenerationFailure
}

type FieldError struct {
  Field   string
  Message string
}

// ValidationError collects every field constraint violated by one request.
type ValidationError struct {
  Errors []FieldError
}

func NewValidationError(field, message string) *ValidationError {
  ve := &ValidationError{}
  ve.Add(field, message)
  return ve
}

func (e *ValidationError) Add(field, message string) {
  e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
  return e != nil && len(e.Errors) > 0
}

// Error joins the messages in the order they were added.
func (e *ValidationError) Error() string {
  msgs := make([]string, 0, len(e.Errors))
  for _, fe := range e.Errors {
    msgs = append(msgs, fe.Message)
  }
  return strings.Join(msgs, " ")
}

func (e *ValidationError) Fields() map[string][]string {
  out := make(map[string][]string, len(e.Errors))
  for _, fe := range e.Errors {
    out[fe.Field] = append(out[fe.Field], fe.Message)
  }
  return out
}

func (e *ValidationError) FieldNames() []string {
  names := make([]string, 0, len(e.Errors))
  for field := range e.Fields() {
    names = append(names, field)
  }
  sort.Strings(names)
  return names
}
