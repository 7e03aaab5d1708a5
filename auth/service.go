package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

// defaultTokenTTL bounds the lifetime of issued session tokens.
const defaultTokenTTL = 24 * time.Hour

// Service implements Authenticator over Redis-stored accounts. Passwords are
// hashed with argon2id; session tokens are HS256 JWTs verifiable by the
// gateway's Verifier in local mode.
type Service struct {
	rdb      *redis.Client
	secret   []byte
	tokenTTL time.Duration
	log      *log.Logger

	mu      sync.RWMutex
	current *account
}

type account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Salt  []byte `json:"salt"`
	Hash  []byte `json:"hash"`
}

// NewService creates an authentication service. The secret signs session
// tokens and must match the gateway verifier's shared secret.
func NewService(client *redis.Client, secret []byte, logger *log.Logger) *Service {
	if client == nil {
		panic("auth.NewService: redis client is nil")
	}
	if len(secret) == 0 {
		panic("auth.NewService: signing secret is empty")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{rdb: client, secret: secret, tokenTTL: defaultTokenTTL, log: logger}
}

func accountKey(email string) string {
	return "planity:auth:account:" + strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// SignUp creates an account and signs it in. An existing account with the
// same email fails with ErrEmailInUse.
func (s *Service) SignUp(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return errors.New("auth: name, email and password are required")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	acc := account{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Salt:  salt,
		Hash:  hashPassword(password, salt),
	}
	data, err := sonic.Marshal(acc)
	if err != nil {
		return err
	}

	created, err := s.rdb.SetNX(ctx, accountKey(email), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrEmailInUse
	}

	s.setCurrent(&acc)
	s.log.WithField("user", acc.ID).Info("account created")
	return nil
}

// SignIn verifies credentials and binds the session to the account.
func (s *Service) SignIn(ctx context.Context, email, password string) error {
	acc, err := s.fetch(ctx, email)
	if err != nil {
		return err
	}
	candidate := hashPassword(password, acc.Salt)
	if subtle.ConstantTimeCompare(candidate, acc.Hash) != 1 {
		return ErrInvalidCredentials
	}
	s.setCurrent(acc)
	return nil
}

// SignOut clears the current session. Open subscriptions keep the identity
// they were opened with.
func (s *Service) SignOut() {
	s.setCurrent(nil)
}

// CurrentUserID returns the signed-in user's id.
func (s *Service) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.ID, true
}

// CurrentProfile returns the signed-in user's display name and email.
func (s *Service) CurrentProfile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Profile{}, false
	}
	return Profile{Name: s.current.Name, Email: s.current.Email}, true
}

// SetDisplayName updates the signed-in account's display name.
func (s *Service) SetDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("auth: display name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errors.New("auth: no signed-in user")
	}
	updated := *s.current
	updated.Name = name
	data, err := sonic.Marshal(updated)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, accountKey(updated.Email), data, 0).Err(); err != nil {
		return err
	}
	s.current = &updated
	return nil
}

// Token issues a signed session token for the current user, for use against
// the HTTP gateway.
func (s *Service) Token() (string, error) {
	s.mu.RLock()
	acc := s.current
	s.mu.RUnlock()
	if acc == nil {
		return "", errors.New("auth: no signed-in user")
	}
	return s.TokenFor(acc.ID)
}

// TokenFor issues a signed session token for the given user id.
func (s *Service) TokenFor(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) fetch(ctx context.Context, email string) (*account, error) {
	data, err := s.rdb.Get(ctx, accountKey(email)).Bytes()
	if err == redis.Nil {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	var acc account
	if err := sonic.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Service) setCurrent(acc *account) {
	s.mu.Lock()
	s.current = acc
	s.mu.Unlock()
}
