package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/pkg/identity"
)

var ErrWrongPasscode = fmt.Errorf("passcode %w", domain.ErrInsufficientPermission)

// personaPrefix marks the seeded test accounts of the identity provider.
const personaPrefix = "test_"

// UserDirectory is the admin side of the identity provider.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]identity.User, error)
	UserByUsername(ctx context.Context, username string) (identity.User, error)
	UserByID(ctx context.Context, id string) (identity.User, error)
}

// Persona is a test account together with its profile.
type Persona struct {
	User    identity.User  `json:"user"`
	Profile domain.Profile `json:"profile"`
}

type AuthService struct {
	directory UserDirectory
	profiles  ProfileDirectory
	passcode  []byte
}

// NewAuthService hashes the dummy personas passcode so that it is never kept in memory in clear.
func NewAuthService(directory UserDirectory, profiles ProfileDirectory, passcode string) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt.GenerateFromPassword -> %w", err)
	}

	return &AuthService{
		directory: directory,
		profiles:  profiles,
		passcode:  hash,
	}, nil
}

func (s *AuthService) CheckPasscode(passcode string) error {
	if err := bcrypt.CompareHashAndPassword(s.passcode, []byte(passcode)); err != nil {
		return ErrWrongPasscode
	}

	return nil
}

// ListPersonas returns the test accounts. Accounts without a profile are listed with an empty one.
func (s *AuthService) ListPersonas(ctx context.Context, passcode string) ([]Persona, error) {
	if err := s.CheckPasscode(passcode); err != nil {
		return nil, err
	}
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.directory.ListUsers -> %w", err)
	}

	var names []string
	for _, u := range users {
		if strings.HasPrefix(u.Username, personaPrefix) {
			names = append(names, u.Username)
		}
	}
	profiles, err := s.profiles.FindByUsernames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("s.profiles.FindByUsernames -> %w", err)
	}
	byName := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Username] = p
	}

	personas := make([]Persona, 0, len(names))
	for _, u := range users {
		if !strings.HasPrefix(u.Username, personaPrefix) {
			continue
		}
		p, ok := byName[u.Username]
		if !ok {
			p = domain.Profile{Username: u.Username, Email: u.Email}
		}
		personas = append(personas, Persona{User: u, Profile: p})
	}

	return personas, nil
}

// LookupUser resolves an account of the identity provider by id or, failing that, by username.
func (s *AuthService) LookupUser(ctx context.Context, key string) (identity.User, error) {
	u, err := s.directory.UserByID(ctx, key)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return identity.User{}, fmt.Errorf("s.directory.UserByID -> %w", err)
	}
	u, err = s.directory.UserByUsername(ctx, key)
	if err != nil {
		return identity.User{}, fmt.Errorf("s.directory.UserByUsername -> %w", err)
	}

	return u, nil
}
