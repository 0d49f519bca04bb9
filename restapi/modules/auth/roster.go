package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Roster represents the bootstrap YAML file
type Roster struct {
	Users []RosterUser `yaml:"users"`
}

// RosterUser represents a user in the roster
type RosterUser struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Department string `yaml:"department,omitempty"`
}

// RosterResult tracks the outcome of applying a roster
type RosterResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Errors  []string `json:"errors"`
}

// LoadRoster reads and validates a roster file
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster parses roster YAML. Emails are normalized and roles must be
// user or admin.
func ParseRoster(data []byte) (*Roster, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seenEmails := make(map[string]bool)
	for i := range roster.Users {
		u := &roster.Users[i]
		u.Email = normalizeEmail(u.Email)
		if u.Email == "" {
			return nil, fmt.Errorf("invalid roster: email is required for entry %d", i+1)
		}
		if seenEmails[u.Email] {
			return nil, fmt.Errorf("invalid roster: duplicate email: %s", u.Email)
		}
		seenEmails[u.Email] = true

		if u.Role == "" {
			u.Role = string(model.RoleUser)
		}
		role, ok := model.ParseRole(u.Role)
		if !ok {
			return nil, fmt.Errorf("invalid roster: invalid role '%s' for user %s", u.Role, u.Email)
		}
		u.Role = string(role)
		if u.Name == "" {
			u.Name = u.Email
		}
	}
	return &roster, nil
}

// ApplyRoster creates missing roster users as verified, password-less
// accounts and syncs role and department of existing ones. Users absent
// from the roster are left alone.
func (s *Service) ApplyRoster(ctx context.Context, roster *Roster) (*RosterResult, error) {
	result := &RosterResult{Created: []string{}, Updated: []string{}, Errors: []string{}}

	for _, entry := range roster.Users {
		existing, err := s.store.FindUserByEmail(ctx, entry.Email)
		switch {
		case err == nil:
			if existing.Role == model.Role(entry.Role) && existing.Department == entry.Department {
				continue
			}
			existing.Role = model.Role(entry.Role)
			existing.Department = entry.Department
			existing.UpdatedAt = s.now()
			if err := s.store.UpdateUser(ctx, existing); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to update %s: %v", entry.Email, err))
				continue
			}
			result.Updated = append(result.Updated, entry.Email)

		case errors.Is(err, database.ErrNotFound):
			u := model.NewUser(entry.Name, entry.Email)
			u.Role = model.Role(entry.Role)
			u.Department = entry.Department
			u.IsVerified = true
			u.CreatedAt, u.UpdatedAt = s.now(), s.now()
			if err := s.store.CreateUser(ctx, u); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to create %s: %v", entry.Email, err))
				continue
			}
			result.Created = append(result.Created, entry.Email)

		default:
			return result, fmt.Errorf("failed to look up %s: %w", entry.Email, err)
		}
	}

	s.logger.Info("Roster applied",
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}
