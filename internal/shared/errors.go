package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrDecode             = fmt.Errorf("failed to decode response")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoDevices          = fmt.Errorf("no devices available")

	// Storage errors
	ErrSettingNotFound  = fmt.Errorf("setting not found")
	ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
