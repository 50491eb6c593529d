package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidData   = errors.New("invalid player data")
	ErrInvalidConfig = errors.New("invalid optimizer configuration")
	ErrInfeasible    = errors.New("no feasible lineup")
	ErrSolverFailed  = errors.New("solver failed")
	ErrNotFound      = errors.New("resource not found")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeData          = "DATA_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeInfeasible    = "INFEASIBLE"
	ErrCodeSolver        = "SOLVER_ERROR"
	ErrCodeInvalidLineup = "INVALID_LINEUP"
)

// DataError reports a malformed player pool. Row is 1-based and counts the
// header, zero when the problem is not tied to a row.
type DataError struct {
	Row    int
	Column string
	Reason string
}

func NewDataError(row int, column, format string, args ...interface{}) *DataError {
	return &DataError{Row: row, Column: column, Reason: fmt.Sprintf(format, args...)}
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString("data error")
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %q)", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *DataError) Unwrap() error { return ErrInvalidData }

// ConfigError reports a contradictory or malformed requirement or constraint.
type ConfigError struct {
	Field       string
	Reason      string
	Suggestions []string
}

func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	msg += ": " + e.Reason
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InfeasibleError means no lineup satisfies the active constraints.
type InfeasibleError struct {
	Reason string
}

func NewInfeasibleError(format string, args ...interface{}) *InfeasibleError {
	return &InfeasibleError{Reason: fmt.Sprintf(format, args...)}
}

func (e *InfeasibleError) Error() string {
	return "infeasible: " + e.Reason
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// SolverError wraps a backend failure or an exhausted solve budget.
type SolverError struct {
	Op  string
	Err error
}

func NewSolverError(op string, err error) *SolverError {
	return &SolverError{Op: op, Err: err}
}

func (e *SolverError) Error() string {
	if e.Err == nil {
		return "solver error: " + e.Op
	}
	return fmt.Sprintf("solver error: %s: %v", e.Op, e.Err)
}

func (e *SolverError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSolverFailed}
	}
	return []error{ErrSolverFailed, e.Err}
}

// ToAppError maps a domain error onto the API error envelope and its HTTP status.
func ToAppError(err error) (int, *AppError) {
	var (
		dataErr       *DataError
		configErr     *ConfigError
		infeasibleErr *InfeasibleError
		solverErr     *SolverError
		appErr        *AppError
	)
	switch {
	case errors.As(err, &dataErr):
		return 400, NewAppError(ErrCodeData, "Invalid player pool", dataErr.Error())
	case errors.As(err, &configErr):
		return 400, NewAppError(ErrCodeConfig, "Invalid optimizer configuration", configErr.Error())
	case errors.As(err, &infeasibleErr):
		return 422, NewAppError(ErrCodeInfeasible, "No lineup satisfies the constraints", infeasibleErr.Reason)
	case errors.As(err, &solverErr):
		if isDeadline(solverErr.Err) {
			return 504, NewAppError(ErrCodeSolver, "Optimization timed out", solverErr.Error())
		}
		return 500, NewAppError(ErrCodeSolver, "Optimization failed", solverErr.Error())
	case errors.As(err, &appErr):
		return 400, appErr
	default:
		return 500, NewAppError(ErrCodeInternal, "Internal server error", err.Error())
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
