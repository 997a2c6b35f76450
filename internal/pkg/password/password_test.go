package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = DefaultCost }()

	hash, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, Verify("s3cret-pass", hash))
	assert.False(t, Verify("wrong-pass", hash))
	assert.False(t, Verify("s3cret-pass", "not-a-hash"))
}

func TestValidatePassword(t *testing.T) {
	assert.False(t, ValidatePassword("short"))
	assert.True(t, ValidatePassword("longenough"))
}
