package auth

import (
	"context"
	"testing"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterYAML = `
users:
  - name: Root
    email: Root@Example.com
    role: Admin
    department: Platform
  - email: newbie@example.com
`

func TestParseRoster(t *testing.T) {
	roster, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)
	require.Len(t, roster.Users, 2)

	assert.Equal(t, RosterUser{Name: "Root", Email: "root@example.com", Role: "admin", Department: "Platform"}, roster.Users[0])
	assert.Equal(t, RosterUser{Name: "newbie@example.com", Email: "newbie@example.com", Role: "user"}, roster.Users[1])
}

func TestParseRoster_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "users: [",
		"missing email":   "users:\n  - name: x\n",
		"duplicate email": "users:\n  - email: a@example.com\n  - email: A@example.com\n",
		"unknown role":    "users:\n  - email: a@example.com\n    role: editor\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoster([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.addUser(t, "Root", "root@example.com", model.RoleUser)

	roster, err := ParseRoster([]byte(rosterYAML))
	require.NoError(t, err)

	result, err := f.svc.ApplyRoster(ctx, roster)
	require.NoError(t, err)
	assert.Equal(t, []string{"newbie@example.com"}, result.Created)
	assert.Equal(t, []string{"root@example.com"}, result.Updated)
	assert.Empty(t, result.Errors)

	root, err := f.store.FindUserByID(ctx, existing.Key)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, root.Role)
	assert.Equal(t, "Platform", root.Department)
	assert.True(t, root.HasPassword(), "existing credentials are kept")

	newbie, err := f.store.FindUserByEmail(ctx, "newbie@example.com")
	require.NoError(t, err)
	assert.True(t, newbie.IsVerified)
	assert.False(t, newbie.HasPassword())

	// applying again changes nothing
	result, err = f.svc.ApplyRoster(ctx, roster)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Updated)
}
