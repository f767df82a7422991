package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"pairchat/internal/domain"
	"pairchat/internal/security"
	"pairchat/internal/service"
)

func newAuthFixture(users *MockUserRepo) *service.AuthService {
	tokens := security.NewTokenService("test-secret", time.Hour)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	return service.NewAuthService(users, tokens, hasher)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	users := new(MockUserRepo)
	svc := newAuthFixture(users)

	_, err := svc.Register(context.Background(), service.RegisterInput{Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = svc.Register(context.Background(), service.RegisterInput{Password: "secret"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterTakenUsername(t *testing.T) {
	users := new(MockUserRepo)
	svc := newAuthFixture(users)

	users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{ID: 1, Username: "alice"}, nil)

	_, err := svc.Register(context.Background(), service.RegisterInput{Username: "alice", Password: "secret"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterHashesPassword(t *testing.T) {
	users := new(MockUserRepo)
	svc := newAuthFixture(users)

	users.On("GetByUsername", mock.Anything, "alice").Return(nil, nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Username == "alice" &&
			bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("secret")) == nil
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 1
	}).Return(nil)

	user, err := svc.Register(context.Background(), service.RegisterInput{Username: "alice", Password: "secret"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestLoginIndistinguishableFailures(t *testing.T) {
	users := new(MockUserRepo)
	svc := newAuthFixture(users)

	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	hashed, err := hasher.Hash("right")
	assert.NoError(t, err)

	users.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)
	users.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{ID: 1, Username: "alice", HashedPassword: hashed}, nil)

	_, unknownErr := svc.Login(context.Background(), service.LoginInput{Username: "ghost", Password: "x"})
	_, wrongErr := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "wrong"})

	assert.ErrorIs(t, unknownErr, domain.ErrUnauthorized)
	assert.ErrorIs(t, wrongErr, domain.ErrUnauthorized)
	// Unknown user and wrong password must read the same to the client.
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	token, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "right"})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}
