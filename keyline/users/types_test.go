package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPassword(t *testing.T) {
	digest := "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"
	empty := ""

	assert.True(t, (&User{PasswordDigest: &digest}).HasPassword())
	assert.False(t, (&User{PasswordDigest: nil}).HasPassword())
	assert.False(t, (&User{PasswordDigest: &empty}).HasPassword())
}

func TestSubjectFor(t *testing.T) {
	googleSub := "google-sub-1"
	appleSub := "apple-sub-1"

	user := &User{GoogleSubject: &googleSub, AppleSubject: &appleSub}

	assert.Equal(t, "google-sub-1", user.SubjectFor("google"))
	assert.Equal(t, "apple-sub-1", user.SubjectFor("apple"))
	assert.Empty(t, user.SubjectFor("github"))

	assert.Empty(t, (&User{}).SubjectFor("google"))
}
