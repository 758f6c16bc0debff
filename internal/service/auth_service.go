package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
)

var (
	ErrUserAlreadyExists = errors.New("user with this email already exists")
	ErrHashingFailed     = errors.New("failed to hash password")
	ErrTokenGeneration   = errors.New("failed to generate authentication token")
)

const minPasswordLength = 8

// LinkType is the purpose of an emailed link.
type LinkType string

const (
	LinkSignup    LinkType = "signup"
	LinkMagicLink LinkType = "magiclink"
)

// Identity is the caller behind a verified access token.
type Identity struct {
	UserID    primitive.ObjectID
	SessionID string
}

type AuthService interface {
	// SignUp creates an unconfirmed account and its profile, and mails a confirmation link.
	SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, identity Identity) error
	// GetSession verifies an access token and checks its session is still open.
	GetSession(ctx context.Context, accessToken string) (*Identity, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	SendMagicLink(ctx context.Context, email, next string) error
	ResendConfirmation(ctx context.Context, email string) error
	// VerifyCallback exchanges an emailed link token for a session.
	VerifyCallback(ctx context.Context, token string, linkType LinkType) (*domain.Session, error)
	User(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
}

type AuthOptions struct {
	JWTSecret     string
	Issuer        string
	JWTExpiration time.Duration
	LinkTTL       time.Duration
	// SiteURL is the public base URL the emailed links point at.
	SiteURL string
}

type authService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	sessions    *SessionStore
	mailer      Mailer
	opts        AuthOptions
	now         func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessions *SessionStore,
	mailer Mailer,
	opts AuthOptions,
) AuthService {
	if opts.JWTSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if opts.JWTExpiration <= 0 {
		opts.JWTExpiration = time.Hour
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = time.Hour
	}
	if opts.Issuer == "" {
		opts.Issuer = "fittrack"
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &authService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessions:    sessions,
		mailer:      mailer,
		opts:        opts,
		now:         time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", &domain.ValidationError{Field: "email", Message: "invalid email address"}
	}
	return email, nil
}

func (s *authService) SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, &domain.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if _, err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	if strings.TrimSpace(displayName) == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	if err := s.profileRepo.Create(ctx, domain.NewProfile(user.ID, displayName)); err != nil {
		// free the address for another attempt
		if delErr := s.userRepo.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			log.Errorf("auth service: remove user %s after failed profile create: %s", user.ID.Hex(), delErr)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if err := s.sendLink(ctx, user, LinkSignup, ""); err != nil {
		log.Errorf("auth service: send confirmation to %s: %s", user.Email, err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	// checked after the password so the branch does not leak which emails exist
	if !user.EmailConfirmed {
		return nil, domain.ErrUnconfirmedEmail
	}
	return s.startSession(ctx, user)
}

func (s *authService) SignOut(ctx context.Context, identity Identity) error {
	return s.sessions.Delete(ctx, identity.SessionID)
}

func (s *authService) GetSession(ctx context.Context, accessToken string) (*Identity, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, &domain.AuthError{Kind: domain.AuthInvalidToken, Err: err}
	}
	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, domain.ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, domain.ErrInvalidToken
	}
	return &Identity{UserID: userID, SessionID: claims.SessionID}, nil
}

func (s *authService) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	sessionID, uid, next, err := s.sessions.Rotate(ctx, refreshToken, s.now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}
	userID, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.session(user, sessionID, next)
}

func (s *authService) SendMagicLink(ctx context.Context, email, next string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// same answer as for a known address
			log.Infof("auth service: magic link requested for unknown address %s", email)
			return nil
		}
		return err
	}
	return s.sendLink(ctx, user, LinkMagicLink, next)
}

func (s *authService) ResendConfirmation(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailConfirmed {
		return nil
	}
	return s.sendLink(ctx, user, LinkSignup, "")
}

func (s *authService) VerifyCallback(ctx context.Context, token string, linkType LinkType) (*domain.Session, error) {
	claims := &linkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc)
	if err != nil || !parsed.Valid || claims.Purpose != linkType || claims.ID == "" {
		return nil, domain.ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	fresh, err := s.sessions.MarkLinkUsed(ctx, claims.ID, s.opts.LinkTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	// following either link proves the address
	if !user.EmailConfirmed {
		if err := s.userRepo.ConfirmEmail(ctx, user.ID); err != nil {
			return nil, err
		}
		user.EmailConfirmed = true
	}
	return s.startSession(ctx, user)
}

func (s *authService) User(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) startSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	sessionID, refreshToken, err := s.sessions.Create(ctx, user.ID.Hex(), s.now())
	if err != nil {
		return nil, err
	}
	return s.session(user, sessionID, refreshToken)
}

func (s *authService) session(user *domain.User, sessionID, refreshToken string) (*domain.Session, error) {
	expiresAt := s.now().Add(s.opts.JWTExpiration)
	accessToken, err := s.sign(&accessClaims{
		UserID:           user.ID.Hex(),
		SessionID:        sessionID,
		RegisteredClaims: s.registered(user.ID, expiresAt),
	})
	if err != nil {
		return nil, ErrTokenGeneration
	}
	user.PasswordHash = ""
	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *authService) sendLink(ctx context.Context, user *domain.User, linkType LinkType, next string) error {
	claims := &linkClaims{
		UserID:           user.ID.Hex(),
		Purpose:          linkType,
		RegisteredClaims: s.registered(user.ID, s.now().Add(s.opts.LinkTTL)),
	}
	claims.ID = uuid.NewString()
	token, err := s.sign(claims)
	if err != nil {
		return ErrTokenGeneration
	}

	query := url.Values{"token_hash": {token}, "type": {string(linkType)}}
	if next != "" {
		query.Set("next", next)
	}
	link := strings.TrimRight(s.opts.SiteURL, "/") + "/api/v1/auth/callback?" + query.Encode()

	subject := "Confirm your email"
	if linkType == LinkMagicLink {
		subject = "Your sign-in link"
	}
	return s.mailer.Send(ctx, Message{To: user.Email, Subject: subject, Body: link})
}

// --- JWT Helpers ---

// accessClaims is the payload of an access token.
type accessClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// linkClaims is the payload of an emailed link; jti makes it single use.
type linkClaims struct {
	UserID  string   `json:"uid"`
	Purpose LinkType `json:"purpose"`
	jwt.RegisteredClaims
}

func (s *authService) registered(userID primitive.ObjectID, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(s.now()),
		Issuer:    s.opts.Issuer,
	}
}

func (s *authService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
}

func (s *authService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(s.opts.JWTSecret), nil
}
