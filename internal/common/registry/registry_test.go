package registry

import (
	"testing"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item string

func (i item) Name() string { return string(i) }

func TestRegistry(t *testing.T) {
	r := New[item]()
	r.Register(item("get_incidents"))
	r.Register(item("block_ioc"))
	r.Register(item("block_ioc"))

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"block_ioc", "get_incidents"}, r.Names())
	assert.True(t, r.IsRegistered("block_ioc"))

	got, err := r.Get("get_incidents")
	require.NoError(t, err)
	assert.Equal(t, item("get_incidents"), got)

	_, err = r.Get("reboot_host")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}
