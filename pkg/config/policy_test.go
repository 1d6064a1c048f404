package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRegistrationPolicy_Defaults(t *testing.T) {
	p := NewRegistrationPolicy(auth.DefaultRequiredFields, testLogger())
	assert.Equal(t, []string{"tenant_id", "user_id", "password"}, p.Required())
}

func TestRegistrationPolicy_RequiredReturnsCopy(t *testing.T) {
	p := NewRegistrationPolicy([]string{"tenant_id"}, testLogger())

	fields := p.Required()
	fields[0] = "mutated"
	assert.Equal(t, []string{"tenant_id"}, p.Required())
}

func TestRegistrationPolicy_LoadFile(t *testing.T) {
	path := writePolicyFile(t, `
required_fields:
  - tenant_id
  - user_id
  - password
  - phone_number
`)

	p := NewRegistrationPolicy(auth.DefaultRequiredFields, testLogger())
	require.NoError(t, p.LoadFile(path))
	assert.Equal(t, []string{"tenant_id", "user_id", "password", "phone_number"}, p.Required())
}

func TestRegistrationPolicy_LoadFileRejectsEmptyPolicy(t *testing.T) {
	path := writePolicyFile(t, `required_fields: []`)

	p := NewRegistrationPolicy(auth.DefaultRequiredFields, testLogger())
	assert.Error(t, p.LoadFile(path))
	// Previous policy stays in effect.
	assert.Equal(t, auth.DefaultRequiredFields, p.Required())
}

func TestRegistrationPolicy_LoadFileRejectsBadYAML(t *testing.T) {
	path := writePolicyFile(t, `required_fields: {not a list`)

	p := NewRegistrationPolicy(auth.DefaultRequiredFields, testLogger())
	assert.Error(t, p.LoadFile(path))
}

func TestRegistrationPolicy_LoadFileMissing(t *testing.T) {
	p := NewRegistrationPolicy(auth.DefaultRequiredFields, testLogger())
	assert.Error(t, p.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
