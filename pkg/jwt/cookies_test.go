package jwt

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCreateAndDeleteCookie(t *testing.T) {
	exp := time.Now().Add(time.Hour)

	c := CreateCookie(AccessCookie, "token", "/", exp)
	assert.Equal(t, "token", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, exp, c.Expires)

	d := DeleteCookie(AccessCookie, "/")
	assert.Empty(t, d.Value)
	assert.Equal(t, -1, d.MaxAge)
}

func TestSha256Hex(t *testing.T) {
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", Sha256Hex("test"))
}

func TestNewJTI(t *testing.T) {
	a, b := NewJTI(), NewJTI()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
