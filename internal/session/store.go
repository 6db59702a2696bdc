package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side record behind the opaque cookie. The role id is
// informational only; authorization re-reads the role on every guarded call.
type Session struct {
	ID     string `json:"-"`
	UserID int    `json:"userId"`
	RoleID int    `json:"roleId"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewStore(cfg Config) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Store{client: client, ttl: cfg.TTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create stores a new session and returns its opaque id for the cookie.
func (s *Store) Create(ctx context.Context, userID, roleID int) (string, error) {
	sess := Session{
		UserID: userID,
		RoleID: roleID,
	}

	data, err := json.Marshal(sess)

	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	err = s.client.Set(ctx, sessionKey(id), data, s.ttl).Err()

	if err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}

	var sess Session

	err = json.Unmarshal(data, &sess)

	if err != nil {
		return Session{}, err
	}

	sess.ID = id

	// sliding expiry: any authenticated request keeps the session alive
	_ = s.client.Expire(ctx, sessionKey(id), s.ttl).Err()

	return sess, nil
}

// Destroy is idempotent; destroying a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}
