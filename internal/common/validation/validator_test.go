package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Accumulates(t *testing.T) {
	v := NewValidatorWithPrefix("falcon")
	v.RequireString(" ", "FALCON_CLIENT_ID").
		RequirePositive(0, "FALCON_RATE_LIMIT_BURST").
		RequireURL("api.crowdstrike.com", "FALCON_BASE_URL").
		RequireOneOf("trace", []string{"debug", "info"}, "LOG_LEVEL").
		RequireRange(70000, 1, 65535, "PORT")

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 5)

	err := v.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: falcon: FALCON_CLIENT_ID is required")
	assert.Contains(t, err.Error(), "FALCON_BASE_URL must be a complete URL with scheme and host")
}

func TestValidator_SingleError(t *testing.T) {
	v := NewValidator().RequireMinLength("short", 32, "API_JWT_SECRET")
	assert.EqualError(t, v.Error(), "API_JWT_SECRET must be at least 32 characters long")
}

func TestValidator_Custom(t *testing.T) {
	v := NewValidator().
		ValidateIf(false, func() error { return fmt.Errorf("skipped") }).
		Validate(func() error { return nil })
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())

	v.Validate(func() error { return fmt.Errorf("custom") })
	assert.EqualError(t, v.Error(), "custom")
}

type isolateArgs struct {
	HostIDs []string `json:"host_ids" validate:"required,min=1,dive,notblank"`
	Note    string   `json:"note" validate:"max=10"`
}

type iocArgs struct {
	Type    string        `json:"type" validate:"required,ioc_type"`
	Timeout time.Duration `json:"timeout" validate:"omitempty,duration"`
}

func TestCentralizedValidator_ValidateStruct(t *testing.T) {
	cv := NewCentralizedValidator()

	assert.NoError(t, cv.ValidateStruct(isolateArgs{HostIDs: []string{"h1"}}))

	err := cv.ValidateStruct(isolateArgs{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "field 'host_ids' is required")

	err = cv.ValidateStruct(isolateArgs{HostIDs: []string{"h1"}, Note: "far too long for this"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'note' must be at most 10")

	failures := cv.Check(isolateArgs{HostIDs: []string{"h1", " "}})
	require.Len(t, failures, 1)
	assert.Equal(t, "notblank", failures[0].Tag)
}

func TestCentralizedValidator_RegisterEnum(t *testing.T) {
	cv := NewCentralizedValidator()
	require.NoError(t, cv.RegisterEnum("ioc_type", []string{"domain", "md5"}, func(field, value string) string {
		return fmt.Sprintf("Invalid IOC type: %q", value)
	}))

	assert.NoError(t, cv.ValidateStruct(iocArgs{Type: "md5"}))

	err := cv.ValidateStruct(iocArgs{Type: "url"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), `Invalid IOC type: "url"`)

	err = cv.ValidateStruct(iocArgs{Type: "md5", Timeout: -time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'timeout' must be a positive duration")
}
