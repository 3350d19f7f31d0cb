package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	listUsers  []models.User
	listCount  int
	listErr    error
	existsErr  error
	createErr  error
	auditLogs  []*models.AuditLog
	lastFilter models.UserFilter
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Username: "jdoe"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500, Search: "jd"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, "jd", repo.lastFilter.Search)

	repo.listErr = errors.New("boom")
	_, _, err = svc.List(context.Background(), models.UserFilter{})
	assertAppError(t, err, appErrors.ErrInternal, "failed to list users")
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Username: " jdoe ",
		Email:    "JDOE@Example.com",
		FullName: "Jane Doe",
		Password: "secret123",
		Role:     models.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user.Username)
	assert.Equal(t, "jdoe@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	require.Len(t, repo.auditLogs, 1)
	audit := repo.auditLogs[0]
	assert.Equal(t, models.AuditActionUserCreate, audit.Action)
	assert.Equal(t, "admin-1", *audit.UserID)
	assert.Contains(t, audit.NewValues, `"username":"jdoe"`)

	_, err = svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Username: "JDOE", Email: "other@example.com", Password: "secret123", Role: models.RoleUser})
	assertAppError(t, err, appErrors.ErrConflict, "username or email already exists")
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Username: "jdoe", Email: "jdoe@example.com", Password: "short", Role: models.RoleUser})
	assertAppError(t, err, appErrors.ErrValidation, "invalid create user payload")

	_, err = svc.Create(context.Background(), adminActor, dto.CreateUserRequest{Username: "jdoe", Email: "jdoe@example.com", Password: "secret123", Role: "SUPERADMIN"})
	assertAppError(t, err, appErrors.ErrValidation, "invalid create user payload")
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1":      {ID: "u1", Username: "jdoe", Active: true},
		"admin-1": {ID: "admin-1", Username: "admin1", Role: models.RoleAdmin, Active: true},
	}}
	svc := NewUserService(repo, nil, nil)

	err := svc.Deactivate(context.Background(), adminActor, "admin-1")
	assertAppError(t, err, appErrors.ErrForbidden, "cannot deactivate your own account")

	err = svc.Deactivate(context.Background(), adminActor, "ghost")
	assertAppError(t, err, appErrors.ErrNotFound, "user not found")

	require.NoError(t, svc.Deactivate(context.Background(), adminActor, "u1"))
	assert.False(t, repo.users["u1"].Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)

	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, user.Active)
}
