package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"blog/internal/models"
	"blog/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login, and session token validation.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which a session token is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// Register creates a new user with a salted bcrypt hash and returns a
// signed session token. The raw password is never persisted or logged.
func (s *AuthService) Register(username, password, confirmation string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", &models.ValidationError{Reason: "username and password are required"}
	}
	if utf8.RuneCountInString(username) > 80 {
		return "", &models.ValidationError{Reason: "username must be at most 80 characters"}
	}
	if password != confirmation {
		return "", &models.ValidationError{Reason: "passwords do not match"}
	}

	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return "", fmt.Errorf("register %q: %w", username, models.ErrUsernameTaken)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: username, Password: string(hashedPassword)}
	if err := s.userRepo.Create(user); err != nil {
		// The repository maps a racing duplicate insert to ErrUsernameTaken.
		return "", fmt.Errorf("failed to register user: %w", err)
	}

	return s.issueToken(user)
}

// Login authenticates a user and returns a session token. All failures
// collapse to ErrInvalidCredentials so the caller cannot probe usernames.
func (s *AuthService) Login(username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return "", models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"jti":      uuid.New().String(),
		"exp":      time.Now().Add(s.tokenDurat).Unix(),
		"iat":      time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a session token, returning the
// identity it carries.
func (s *AuthService) ValidateToken(tokenString string) (*models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	// MapClaims decodes JSON numbers as float64.
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, errors.New("invalid token: missing user_id claim")
	}
	username, _ := claims["username"].(string)

	return &models.Identity{UserID: uint(userID), Username: username}, nil
}
