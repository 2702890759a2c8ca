package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-api/internal/schema"
)

func TestExamplesValidate(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Validate(s.Example(), false)
			require.NoError(t, err)
		})
	}
}

func TestUsersRoleDefault(t *testing.T) {
	body := Users.Example()
	delete(body, "role")
	rec, err := Users.Validate(body, false)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, rec["role"])
}

func TestUsersPasswordFitsBcrypt(t *testing.T) {
	for name, pw := range map[string]string{
		"too many characters": strings.Repeat("a", 80),
		"too many bytes":      strings.Repeat("é", 40),
	} {
		t.Run(name, func(t *testing.T) {
			body := Users.Example()
			body["password"] = pw
			_, err := Users.Validate(body, false)
			var ve *schema.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, []string{"password"}, ve.Fields())
		})
	}

	body := Users.Example()
	body["password"] = strings.Repeat("a", 72)
	_, err := Users.Validate(body, false)
	assert.NoError(t, err)
}

func TestSessionActive(t *testing.T) {
	now := time.Now()
	s := &Session{Status: SessionActive, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, s.Active(now))
	assert.False(t, s.Active(now.Add(2*time.Minute)))

	s.Status = SessionInactive
	assert.False(t, s.Active(now))
}
