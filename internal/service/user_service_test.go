package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
	"taskhub/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestUserService_GetUser_UsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	repo := new(MockUserRepository)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id, repository.FindOptions{}).
		Return(&model.User{ID: id, Name: "Ada", Email: "ada@example.com", Role: model.RoleUser, PasswordHash: "h"}, nil).Once()

	svc := NewUserService(repo, cache.New(mr.Addr(), "", 0), new(MockTokenStore), auth.NewPasswordHasher(4), nil)

	first, err := svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, first.PasswordHash)

	second, err := svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("FindByID", mock.Anything, mock.Anything, mock.Anything).Return(nil, apperrors.ErrUserNotFound)
	svc := NewUserService(repo, nil, new(MockTokenStore), auth.NewPasswordHasher(4), nil)

	_, err := svc.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_ListUsers(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("List", mock.Anything, repository.ListFilter{Key: "a", Page: 2, Limit: 12}).
		Return([]model.User{{ID: uuid.New(), Name: "Ada", PasswordHash: "h"}}, int64(13), nil)
	svc := NewUserService(repo, nil, new(MockTokenStore), auth.NewPasswordHasher(4), nil)

	page, err := svc.ListUsers(context.Background(), repository.ListFilter{Key: " a ", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 12, page.Limit)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(13), page.Total)
	assert.Empty(t, page.Users[0].PasswordHash)
}

func TestUserService_UpdateMe(t *testing.T) {
	tests := []struct {
		name          string
		input         ProfileUpdate
		setupMock     func(*MockUserRepository, uuid.UUID)
		expectedError error
	}{
		{
			name:  "updates name and email",
			input: ProfileUpdate{Name: strPtr(" Grace "), Email: strPtr("Grace@Example.com")},
			setupMock: func(r *MockUserRepository, id uuid.UUID) {
				r.On("UpdateFields", mock.Anything, id, map[string]interface{}{"name": "Grace", "email": "grace@example.com"}).Return(nil)
				r.On("FindByID", mock.Anything, id, repository.FindOptions{IncludeInactive: true}).
					Return(&model.User{ID: id, Name: "Grace", Email: "grace@example.com"}, nil)
			},
		},
		{
			name:          "password field rejected",
			input:         ProfileUpdate{Name: strPtr("Grace"), Password: "NewPass1!"},
			setupMock:     func(*MockUserRepository, uuid.UUID) {},
			expectedError: apperrors.ErrPasswordFieldsNotAllowed,
		},
		{
			name:          "password confirm field rejected",
			input:         ProfileUpdate{PasswordConfirm: "NewPass1!"},
			setupMock:     func(*MockUserRepository, uuid.UUID) {},
			expectedError: apperrors.ErrPasswordFieldsNotAllowed,
		},
		{
			name:  "email taken",
			input: ProfileUpdate{Email: strPtr("taken@example.com")},
			setupMock: func(r *MockUserRepository, id uuid.UUID) {
				r.On("UpdateFields", mock.Anything, id, mock.Anything).Return(apperrors.ErrUserAlreadyExists)
			},
			expectedError: apperrors.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			id := uuid.New()
			tt.setupMock(repo, id)
			svc := NewUserService(repo, nil, new(MockTokenStore), auth.NewPasswordHasher(4), nil)

			user, err := svc.UpdateMe(context.Background(), id, tt.input)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				if tt.expectedError == apperrors.ErrPasswordFieldsNotAllowed {
					assert.Empty(t, repo.Calls, "store must not be touched")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Grace", user.Name)
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_DeactivateMe(t *testing.T) {
	repo, store := new(MockUserRepository), new(MockTokenStore)
	id := uuid.New()
	repo.On("UpdateFields", mock.Anything, id, map[string]interface{}{"active": false}).Return(nil)
	store.On("ClearSession", mock.Anything, id.String()).Return(nil)
	svc := NewUserService(repo, nil, store, auth.NewPasswordHasher(4), nil)

	require.NoError(t, svc.DeactivateMe(context.Background(), id))
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestUserService_CreateUser(t *testing.T) {
	tests := []struct {
		name          string
		input         CreateUserInput
		setupMock     func(*MockUserRepository)
		expectedRole  model.Role
		expectedError error
	}{
		{
			name:  "admin creates admin",
			input: CreateUserInput{Name: "Root", Email: "root@example.com", Role: "admin", Password: "Secret123!", PasswordConfirm: "Secret123!"},
			setupMock: func(r *MockUserRepository) {
				r.On("FindByEmail", mock.Anything, "root@example.com", repository.FindOptions{IncludeInactive: true}).Return(nil, apperrors.ErrUserNotFound)
				r.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleAdmin,
		},
		{
			name:  "role defaults to user",
			input: CreateUserInput{Email: "u@example.com", Password: "Secret123!", PasswordConfirm: "Secret123!"},
			setupMock: func(r *MockUserRepository) {
				r.On("FindByEmail", mock.Anything, "u@example.com", mock.Anything).Return(nil, apperrors.ErrUserNotFound)
				r.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedRole: model.RoleUser,
		},
		{
			name:          "unknown role",
			input:         CreateUserInput{Email: "u@example.com", Role: "superuser", Password: "x", PasswordConfirm: "x"},
			setupMock:     func(*MockUserRepository) {},
			expectedError: apperrors.ErrInvalidRole,
		},
		{
			name:          "confirmation mismatch",
			input:         CreateUserInput{Email: "u@example.com", Password: "x", PasswordConfirm: "y"},
			setupMock:     func(*MockUserRepository) {},
			expectedError: apperrors.ErrPasswordMismatch,
		},
		{
			name:  "email taken by deactivated user",
			input: CreateUserInput{Email: "old@example.com", Password: "x", PasswordConfirm: "x"},
			setupMock: func(r *MockUserRepository) {
				r.On("FindByEmail", mock.Anything, "old@example.com", repository.FindOptions{IncludeInactive: true}).
					Return(&model.User{ID: uuid.New()}, nil)
			},
			expectedError: apperrors.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setupMock(repo)
			svc := NewUserService(repo, nil, new(MockTokenStore), auth.NewPasswordHasher(4), nil)

			user, err := svc.CreateUser(context.Background(), tt.input)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRole, user.Role)
			assert.Empty(t, user.PasswordHash)
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_UpdateUser(t *testing.T) {
	repo, store := new(MockUserRepository), new(MockTokenStore)
	id := uuid.New()
	inactive := false
	repo.On("UpdateFields", mock.Anything, id, map[string]interface{}{"role": model.RoleAdmin, "active": false}).Return(nil)
	repo.On("FindByID", mock.Anything, id, repository.FindOptions{IncludeInactive: true}).
		Return(&model.User{ID: id, Role: model.RoleAdmin}, nil)
	store.On("ClearSession", mock.Anything, id.String()).Return(nil)
	svc := NewUserService(repo, nil, store, auth.NewPasswordHasher(4), nil)

	user, err := svc.UpdateUser(context.Background(), id, AdminUpdate{Role: strPtr("Admin"), Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
	store.AssertExpectations(t)

	_, err = svc.UpdateUser(context.Background(), id, AdminUpdate{Role: strPtr("owner")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
}

func TestUserService_SetPasswordInvalidatesTokens(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "a@example.com", "Secret123!", model.RoleUser)
	login, err := h.svc.Login(context.Background(), u.Email, "Secret123!")
	require.NoError(t, err)

	svc := NewUserService(h.users, nil, h.store, h.hasher, nil).(*userService)
	svc.passwords.now = h.clock.Now

	require.NoError(t, svc.SetPassword(context.Background(), u.ID, "Admin1234!", "Admin1234!"))
	assert.ErrorIs(t, svc.SetPassword(context.Background(), u.ID, "a", "b"), apperrors.ErrPasswordMismatch)

	_, err = h.svc.Authenticate(context.Background(), login.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = h.svc.Login(context.Background(), u.Email, "Admin1234!")
	assert.NoError(t, err)
}

func TestUserService_DeactivatedUserDisappears(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "a@example.com", "Secret123!", model.RoleUser)
	svc := NewUserService(h.users, nil, h.store, h.hasher, nil)

	require.NoError(t, svc.DeactivateUser(context.Background(), u.ID))

	_, err := svc.GetUser(context.Background(), u.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	page, err := svc.ListUsers(context.Background(), repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Users)

	stored := h.users.get(u.ID)
	assert.False(t, stored.Active)
	assert.NotEmpty(t, stored.PasswordHash, "deactivation keeps the record")
}
