// internal/handlers/auth_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/stockpics/backend/internal/config"
	"github.com/stockpics/backend/internal/middleware"
	"github.com/stockpics/backend/internal/services"
	"github.com/stockpics/backend/internal/testutil"
	"github.com/stockpics/backend/internal/utils"
)

type AuthTestSuite struct {
	suite.Suite
	db          *gorm.DB
	router      *gin.Engine
	authHandler *AuthHandler
}

func (suite *AuthTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		utils.RegisterCustomValidations(v)
	}
}

func (suite *AuthTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())

	testConfig := &config.Config{
		JWT:  config.JWTConfig{SecretKey: "handler-secret", AccessTokenTTL: 2, Issuer: "stockpics-test"},
		Auth: config.AuthConfig{InitialAdminEmail: "admin@example.com"},
	}
	tokens := utils.NewTokenManager(testConfig.JWT.SecretKey, testConfig.JWT.AccessTokenTTL, testConfig.JWT.Issuer)
	authService := services.NewAuthService(suite.db, testConfig, tokens, services.NewGoogleIdentityProvider(testConfig.Auth))
	suite.authHandler = NewAuthHandler(authService)

	// Setup routes
	suite.router = gin.New()
	auth := suite.router.Group("/auth")
	{
		auth.POST("/register", suite.authHandler.Register)
		auth.POST("/login", suite.authHandler.Login)
		auth.POST("/google", suite.authHandler.GoogleLogin)
	}
	suite.router.GET("/me", middleware.AuthRequired(tokens, false), suite.authHandler.Me)
}

func (suite *AuthTestSuite) post(path string, data map[string]interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	jsonData, _ := json.Marshal(data)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	return w, response
}

func (suite *AuthTestSuite) TestUserRegistration() {
	// Test successful registration
	w, response := suite.post("/auth/register", map[string]interface{}{
		"name":     "testuser",
		"email":    "test@example.com",
		"password": "TestPass123!",
	})

	assert.Equal(suite.T(), http.StatusCreated, w.Code)
	assert.True(suite.T(), response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Bearer", data["token_type"])
	assert.Equal(suite.T(), float64(7200), data["expires_in"])
	assert.Equal(suite.T(), "user", data["user"].(map[string]interface{})["role"])
	assert.NotContains(suite.T(), data["user"], "password_hash")

	// Duplicate email
	w, response = suite.post("/auth/register", map[string]interface{}{
		"name":     "again",
		"email":    "TEST@example.com",
		"password": "TestPass123!",
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.False(suite.T(), response["success"].(bool))
}

func (suite *AuthTestSuite) TestRegistrationValidation() {
	for name, data := range map[string]map[string]interface{}{
		"weak password": {"name": "a", "email": "a@example.com", "password": "letters-only"},
		"bad email":     {"name": "a", "email": "not-an-email", "password": "TestPass123!"},
		"missing name":  {"email": "a@example.com", "password": "TestPass123!"},
	} {
		suite.Run(name, func() {
			w, response := suite.post("/auth/register", data)
			assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
			assert.Equal(suite.T(), utils.CodeInvalidInput, response["error"].(map[string]interface{})["code"])
		})
	}
}

func (suite *AuthTestSuite) TestUserLogin() {
	// First register a user
	w, _ := suite.post("/auth/register", map[string]interface{}{
		"name":     "testuser",
		"email":    "admin@example.com",
		"password": "TestPass123!",
	})
	suite.Require().Equal(http.StatusCreated, w.Code)

	// Test login
	w, response := suite.post("/auth/login", map[string]interface{}{
		"email":    "admin@example.com",
		"password": "TestPass123!",
	})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "admin", data["user"].(map[string]interface{})["role"])

	// The issued token opens /me
	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+data["access_token"].(string))
	me := httptest.NewRecorder()
	suite.router.ServeHTTP(me, req)
	assert.Equal(suite.T(), http.StatusOK, me.Code)
	assert.Contains(suite.T(), me.Body.String(), "admin@example.com")

	// Wrong password
	w, _ = suite.post("/auth/login", map[string]interface{}{
		"email":    "admin@example.com",
		"password": "WrongPass123!",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *AuthTestSuite) TestGoogleLoginDisabled() {
	w, response := suite.post("/auth/google", map[string]interface{}{"token": "id-token"})
	assert.Equal(suite.T(), http.StatusBadGateway, w.Code)
	assert.Equal(suite.T(), utils.CodeUpstreamFailure, response["error"].(map[string]interface{})["code"])
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
