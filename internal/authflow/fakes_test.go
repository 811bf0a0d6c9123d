package authflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/keyline/users"
)

// in-memory UserStore mirroring the repository's semantics: case-insensitive
// unique email, guarded provider linking, keep-if-absent profile refresh
type fakeStore struct {
	mu      sync.Mutex
	byID    map[string]*users.User
	nextID  int
	touched []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*users.User)}
}

func (f *fakeStore) FindByID(_ context.Context, userID string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[userID]
	if !ok {
		return nil, users.ErrNotFound
	}

	return copyUser(user), nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.findByEmailLocked(email)
	if user == nil {
		return nil, users.ErrNotFound
	}

	return copyUser(user), nil
}

func (f *fakeStore) FindByProviderSubject(_ context.Context, provider, subject string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.byID {
		if user.SubjectFor(provider) == subject && subject != "" {
			return copyUser(user), nil
		}
	}

	return nil, users.ErrNotFound
}

func (f *fakeStore) CreateLocal(_ context.Context, email, passwordDigest string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findByEmailLocked(email) != nil {
		return nil, users.ErrEmailTaken
	}

	user := &users.User{
		ID:             f.newIDLocked(),
		Email:          email,
		PasswordDigest: &passwordDigest,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.byID[user.ID] = user

	return copyUser(user), nil
}

func (f *fakeStore) CreateFederated(_ context.Context, provider, subject, email, displayName, avatarURL string, emailVerified bool) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findByEmailLocked(email) != nil {
		return nil, users.ErrEmailTaken
	}

	user := &users.User{
		ID:          f.newIDLocked(),
		Email:       email,
		DisplayName: displayName,
		IsVerified:  emailVerified,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if avatarURL != "" {
		user.AvatarURL = &avatarURL
	}

	switch provider {
	case identity.ProviderGoogle:
		user.GoogleSubject = &subject
	case identity.ProviderApple:
		user.AppleSubject = &subject
	default:
		return nil, users.ErrUnknownProvider
	}

	f.byID[user.ID] = user

	return copyUser(user), nil
}

func (f *fakeStore) LinkProvider(_ context.Context, userID, provider, subject string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[userID]
	if !ok {
		return nil, users.ErrNotFound
	}

	// a subject already stored for this provider means a concurrent link won
	if user.SubjectFor(provider) != "" {
		return nil, users.ErrNotFound
	}

	switch provider {
	case identity.ProviderGoogle:
		user.GoogleSubject = &subject
	case identity.ProviderApple:
		user.AppleSubject = &subject
	default:
		return nil, users.ErrUnknownProvider
	}

	user.IsVerified = true
	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

func (f *fakeStore) UpdateFederatedProfile(_ context.Context, userID, displayName, avatarURL string, emailVerified bool) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[userID]
	if !ok {
		return nil, users.ErrNotFound
	}

	if displayName != "" {
		user.DisplayName = displayName
	}

	if avatarURL != "" {
		user.AvatarURL = &avatarURL
	}

	user.IsVerified = user.IsVerified || emailVerified
	user.UpdatedAt = time.Now()

	return copyUser(user), nil
}

func (f *fakeStore) TouchLastLogin(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[userID]
	if !ok {
		return users.ErrNotFound
	}

	now := time.Now()
	user.LastLoginAt = &now
	f.touched = append(f.touched, userID)

	return nil
}

func (f *fakeStore) findByEmailLocked(email string) *users.User {
	for _, user := range f.byID {
		if strings.EqualFold(user.Email, email) {
			return user
		}
	}

	return nil
}

func (f *fakeStore) newIDLocked() string {
	f.nextID++
	return fmt.Sprintf("user-%d", f.nextID)
}

func copyUser(u *users.User) *users.User {
	c := *u
	return &c
}

// scripted identity provider: the exchange maps codes to canned claims
type fakeProvider struct {
	name string

	// code -> claims returned by Exchange
	identities map[string]*identity.Claims

	// when set, Exchange fails with this error
	exchangeErr error

	// when set, Exchange blocks until the context expires
	hang bool

	exchanges int
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, identities: make(map[string]*identity.Claims)}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*identity.Claims, error) {
	f.exchanges++

	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}

	claims, ok := f.identities[code]
	if !ok {
		return nil, identity.ErrExchangeFailed
	}

	c := *claims
	return &c, nil
}
