package services

import (
	"crypto/rand"
	"log"
	"math/big"
	"time"

	"pasar/internal/apperrors"
	"pasar/internal/auth"
	"pasar/internal/models"
	"pasar/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// Mailer delivers one-time verification codes. The real mail sender lives
// outside this service; tests and local runs inject lighter implementations.
type Mailer interface {
	SendVerificationCode(email, code string) error
}

// LogMailer is a Mailer that only logs the code. Used when no mail sender is
// configured.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(email, code string) error {
	log.Printf("verification code for %s: %s", email, code)
	return nil
}

const verificationCodeTTL = 15 * time.Minute

// AuthService handles registration, login, email verification and the
// admin-side user management operations. Tokens are minted by the injected
// Authority, scoped to the client type the caller declared.
type AuthService struct {
	userRepo repositories.UserRepository
	tokens   *auth.Authority
	mailer   Mailer
}

// NewAuthService creates a new AuthService. A nil mailer falls back to
// LogMailer.
func NewAuthService(userRepo repositories.UserRepository, tokens *auth.Authority, mailer Mailer) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		mailer:   mailer,
	}
}

// Register creates a new unverified user and sends them a one-time
// verification code. The user cannot log in until the code is confirmed.
func (s *AuthService) Register(username, email, password string) (*models.User, error) {
	if existing, err := s.userRepo.GetByUsername(username); err == nil && existing != nil {
		return nil, apperrors.Conflict("username '%s' already taken", username)
	}
	if existing, err := s.userRepo.GetByEmail(email); err == nil && existing != nil {
		return nil, apperrors.Conflict("email '%s' already registered", email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to hash password")
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate verification code")
	}
	expiry := time.Now().Add(verificationCodeTTL)

	user := &models.User{
		Username:         username,
		Email:            email,
		Password:         string(hashedPassword),
		VerificationCode: code,
		CodeExpiresAt:    &expiry,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationCode(email, code); err != nil {
		// The user exists and can request a fresh code; do not fail the
		// registration over a mail delivery problem.
		log.Printf("Warning: failed to send verification code to %s: %v", email, err)
	}
	return user, nil
}

// VerifyEmail confirms a one-time code, marks the user verified, and issues a
// token for the declared client type.
func (s *AuthService) VerifyEmail(email, code string, ct auth.ClientType) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", nil, apperrors.Authentication("invalid verification code")
	}
	if user.IsBlocked {
		return "", nil, apperrors.Authorization("account is blocked")
	}
	if user.VerificationCode == "" || user.VerificationCode != code {
		return "", nil, apperrors.Authentication("invalid verification code")
	}
	if user.CodeExpiresAt == nil || time.Now().After(*user.CodeExpiresAt) {
		return "", nil, apperrors.Authentication("verification code has expired")
	}

	user.IsVerified = true
	user.VerificationCode = ""
	user.CodeExpiresAt = nil
	if err := s.userRepo.Update(user); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.ID, ct)
	if err != nil {
		return "", nil, apperrors.Internal(err, "failed to issue token")
	}
	return token, user, nil
}

// Login authenticates a user by password and issues a token for the declared
// client type. Unknown users and wrong passwords get the same generic answer.
func (s *AuthService) Login(username, password string, ct auth.ClientType) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return "", nil, apperrors.Authentication("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperrors.Authentication("invalid credentials")
	}
	if user.IsBlocked {
		return "", nil, apperrors.Authorization("account is blocked")
	}
	if !user.IsVerified {
		return "", nil, apperrors.Authentication("email is not verified")
	}

	token, err := s.tokens.Issue(user.ID, ct)
	if err != nil {
		return "", nil, apperrors.Internal(err, "failed to issue token")
	}
	return token, user, nil
}

// FederatedLogin signs in a user authenticated by an external identity
// provider, creating an auto-verified account on first login.
func (s *AuthService) FederatedLogin(email, username string, ct auth.ClientType) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return "", nil, err
		}
		user = &models.User{
			Username:    username,
			Email:       email,
			IsVerified:  true,
			IsFederated: true,
		}
		if err := s.userRepo.Create(user); err != nil {
			return "", nil, err
		}
	}
	if user.IsBlocked {
		return "", nil, apperrors.Authorization("account is blocked")
	}

	token, err := s.tokens.Issue(user.ID, ct)
	if err != nil {
		return "", nil, apperrors.Internal(err, "failed to issue token")
	}
	return token, user, nil
}

// Authenticate verifies a bearer token against the declared client type and
// re-resolves the user, so deleted and blocked accounts are rejected even
// while their tokens are still cryptographically valid.
func (s *AuthService) Authenticate(tokenString string, ct auth.ClientType) (*models.User, *auth.Claims, error) {
	claims, err := s.tokens.Verify(tokenString, ct)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, nil, apperrors.Authentication("user no longer exists")
		}
		return nil, nil, err
	}
	if user.IsBlocked {
		return nil, nil, apperrors.Authorization("account is blocked")
	}
	return user, claims, nil
}

// BlockUser marks a user as blocked; their existing tokens stop verifying on
// the next request.
func (s *AuthService) BlockUser(id string) error {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return err
	}
	user.IsBlocked = true
	return s.userRepo.Update(user)
}

// DeleteUser removes a user. Admin accounts cannot be deleted through this
// path.
func (s *AuthService) DeleteUser(id string) error {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		return apperrors.Authorization("admin users cannot be deleted")
	}
	return s.userRepo.Delete(id)
}

// GetUserByID resolves a user for profile views.
func (s *AuthService) GetUserByID(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}

// generateVerificationCode produces a 6-digit one-time code.
func generateVerificationCode() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		buf[i] = digits[n.Int64()]
	}
	return string(buf), nil
}
