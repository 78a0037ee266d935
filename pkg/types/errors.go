// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is checks. Each typed error below matches
// exactly one sentinel.
var (
	ErrConfig    = errors.New("configuration error")
	ErrProvider  = errors.New("model provider error")
	ErrTool      = errors.New("tool error")
	ErrPackaging = errors.New("packaging error")
)

// ConfigError reports a missing or invalid setting or credential.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConfig, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ProviderErrorKind classifies a model call failure.
type ProviderErrorKind string

const (
	ProviderAuth        ProviderErrorKind = "auth"
	ProviderRateLimit   ProviderErrorKind = "rate_limit"
	ProviderQuota       ProviderErrorKind = "quota"
	ProviderTimeout     ProviderErrorKind = "timeout"
	ProviderUnavailable ProviderErrorKind = "unavailable"
	ProviderBadRequest  ProviderErrorKind = "bad_request"
	ProviderEmpty       ProviderErrorKind = "empty_response"
)

// ProviderError reports a failed call to the model provider.
type ProviderError struct {
	Stage      StageName
	Model      string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s (%s)", ErrProvider, e.Kind)
	if e.Stage != "" {
		msg += " in stage " + string(e.Stage)
	}
	if e.Model != "" {
		msg += " model " + e.Model
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// KindForStatus maps an HTTP status code from the provider to an error kind.
func KindForStatus(status int) ProviderErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ProviderAuth
	case status == http.StatusTooManyRequests:
		return ProviderRateLimit
	case status == http.StatusPaymentRequired:
		return ProviderQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ProviderTimeout
	case status >= 500:
		return ProviderUnavailable
	default:
		return ProviderBadRequest
	}
}

// ToolError reports a failed tool invocation.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTool, e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Is(target error) bool { return target == ErrTool }

// PackagingError reports a failed file-system write while packaging a run.
type PackagingError struct {
	Path string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPackaging, e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

func (e *PackagingError) Is(target error) bool { return target == ErrPackaging }
