// Package accounts handles user registration, login and existence checks for both services.
package accounts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

type Service struct {
	store docstore.Store
	cost  int
	log   *logger.Logger
	now   func() time.Time
}

// NewService builds the account service. cost is the bcrypt cost; zero selects bcrypt.DefaultCost.
func NewService(store docstore.Store, cost int, log *logger.Logger) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, cost: cost, log: log, now: time.Now}
}

func validUsername(username string) error {
	if err := docstore.ValidateSegment(username); err != nil {
		return fmt.Errorf("%w: invalid username %q", domain.ErrValidation, username)
	}
	return nil
}

// Exists reports whether username has a registered account. A name that
// cannot be a username is a validation error, not a miss.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	if err := validUsername(username); err != nil {
		return false, err
	}
	ok, err := s.store.Exists(ctx, docstore.UserPath(username))
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", username, err)
	}
	return ok, nil
}

// Register creates an account. Usernames are claimed with a conditional write so concurrent sign-ups cannot both win.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("%w: missing required parameters", domain.ErrValidation)
	}
	if err := validUsername(username); err != nil {
		return err
	}

	exists, err := s.Exists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrUsernameTaken
	}
	sameEmail, err := s.store.QueryEqual(ctx, docstore.UsersCollection, "email", email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if len(sameEmail) > 0 {
		return domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	path := docstore.UserPath(username)
	claimed, err := s.store.SetFieldIfAbsent(ctx, path, "email", docstore.MustEncode(email))
	if err != nil {
		return fmt.Errorf("claim username: %w", err)
	}
	if !claimed {
		return domain.ErrUsernameTaken
	}
	err = s.store.Update(ctx, path, docstore.Document{
		"password":  docstore.MustEncode(string(hash)),
		"createdAt": docstore.MustEncode(domain.FormatTimestamp(s.now())),
	})
	if err != nil {
		if rerr := s.store.DeleteField(context.WithoutCancel(ctx), path, "email"); rerr != nil {
			s.log.Error("username claim rollback failed", "username", username, "error", rerr)
		}
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// Login verifies the password and returns the account with the ids of courses the user authored.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Account, error) {
	if username == "" || password == "" {
		return domain.Account{}, fmt.Errorf("%w: missing username or password", domain.ErrValidation)
	}
	if err := validUsername(username); err != nil {
		return domain.Account{}, err
	}
	doc, err := s.store.Get(ctx, docstore.UserPath(username))
	if err != nil {
		return domain.Account{}, fmt.Errorf("load user: %w", err)
	}
	if len(doc) == 0 {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doc.String("password")), []byte(password)); err != nil {
		return domain.Account{}, domain.ErrInvalidCredentials
	}

	courses, err := s.store.Get(ctx, docstore.UserCoursesPath(username))
	if err != nil {
		return domain.Account{}, fmt.Errorf("load authored courses: %w", err)
	}
	ids := make([]string, 0, len(courses))
	for id := range courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return domain.Account{
		Username: username,
		Email:    doc.String("email"),
		Courses:  ids,
	}, nil
}
