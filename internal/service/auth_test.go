package service_test // 测试包

import (
	"context"
	"errors"
	"testing"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/repository/mocks"
	"realtime-chat/internal/service"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const strongPassword = "Sup3r-Secret-Pass!"

// --- 测试 Register 方法 ---

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, err := service.NewAuthService(mockUserRepo, "very-secret-key", 1)
	require.NoError(t, err, "创建 AuthService 不应失败")
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "newbie@example.com").
		Return(nil, repository.ErrUserNotFound).
		Once()
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, "New Bie", user.FullName)
		assert.Equal(t, "newbie@example.com", user.Email, "邮箱应被规范化为小写")
		assert.Len(t, user.ID, 36, "用户 ID 应为 UUID")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(strongPassword)), "密码应被正确哈希")
		return true
	})).Return(nil).Once()

	// Act
	user, token, err := authService.Register(ctx, " New Bie ", "NewBie@Example.com", strongPassword)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Empty(t, user.Password, "返回的用户密码应为空")
	assert.NotEmpty(t, token)

	// token 中携带字符串形式的 user_id
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("very-secret-key"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID, claims["user_id"])

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	_, _, err := authService.Register(context.Background(), "Weak", "weak@example.com", "password")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrWeakPassword))
	mockUserRepo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	_, _, err := authService.Register(ctx, "", "a@example.com", strongPassword)
	assert.True(t, errors.Is(err, service.ErrInvalidInput))

	_, _, err = authService.Register(ctx, "Name", "not-an-email", strongPassword)
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "taken@example.com").
		Return(&domain.User{ID: "u-10", Email: "taken@example.com"}, nil).Once()

	_, _, err := authService.Register(ctx, "Someone", "taken@example.com", strongPassword)

	require.Error(t, err, "邮箱已存在时应返回错误")
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed))
	mockUserRepo.AssertExpectations(t)
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SaveFails_DuplicateEntry(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "race@example.com").Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	_, _, err := authService.Register(ctx, "Racer", "race@example.com", strongPassword)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed), "保存冲突时应返回 ErrRegistrationFailed")
	mockUserRepo.AssertExpectations(t)
}

// --- 测试 Login 方法 ---

func TestAuthService_Login_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	userInDb := &domain.User{ID: "u-1", FullName: "Test User", Email: "test@example.com", Password: string(hashedPassword)}

	mockUserRepo.On("FindByEmail", ctx, "test@example.com").Return(userInDb, nil).Once()

	user, token, err := authService.Login(ctx, "Test@Example.com", strongPassword)

	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NotNil(t, user)
	assert.Empty(t, user.Password)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "nobody@example.com").Return(nil, repository.ErrUserNotFound).Once()

	_, token, err := authService.Login(ctx, "nobody@example.com", "password")

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	userInDb := &domain.User{ID: "u-1", Email: "test@example.com", Password: string(hashedPassword)}

	mockUserRepo.On("FindByEmail", ctx, "test@example.com").Return(userInDb, nil).Once()

	_, token, err := authService.Login(ctx, "test@example.com", "wrongpassword")

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Me(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, "u-1").Return(&domain.User{ID: "u-1", Password: "hash"}, nil).Once()
	mockUserRepo.On("FindByID", ctx, "ghost").Return(nil, repository.ErrUserNotFound).Once()

	user, err := authService.Me(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, user.Password)

	_, err = authService.Me(ctx, "ghost")
	assert.True(t, errors.Is(err, service.ErrUserNotFound))
	mockUserRepo.AssertExpectations(t)
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := service.NewAuthService(new(mocks.UserRepository), "", 1)
	assert.Error(t, err)
	assert.Panics(t, func() { service.NewAuthService(nil, "secret", 1) })
}
