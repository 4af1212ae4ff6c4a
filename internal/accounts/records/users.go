package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
)

type userNode struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	IsActive    *bool      `json:"isActive"`
	HasPaid     bool       `json:"hasPaid"`
	AccessStart *time.Time `json:"accessStart"`
	AccessEnd   *time.Time `json:"accessEnd"`
	CreatedAt   time.Time  `json:"createdAt"`
	Roles       struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	} `json:"roles"`
	Student *struct {
		ID    string `json:"id"`
		Coach *struct {
			ID string `json:"id"`
		} `json:"coach"`
	} `json:"student"`
}

func (n userNode) toDomain() domain.UserRecord {
	u := domain.UserRecord{
		ID:          n.ID,
		FirstName:   n.FirstName,
		LastName:    n.LastName,
		Email:       n.Email,
		IsActive:    n.IsActive == nil || *n.IsActive, // never-touched records are active
		HasPaid:     n.HasPaid,
		AccessStart: n.AccessStart,
		AccessEnd:   n.AccessEnd,
		CreatedAt:   n.CreatedAt,
	}
	if len(n.Roles.Items) > 0 {
		u.Role = parseRole(n.Roles.Items[0].Name)
	}
	if n.Student != nil && n.Student.Coach != nil {
		u.AssignedCoachID = n.Student.Coach.ID
	}
	return u
}

// parseRole maps store role names ("Coach Manager", "Student") to roles.
func parseRole(name string) domain.Role {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if key == "student" {
		return domain.RoleStudent
	}
	return domain.Role(key)
}

// CreateUser writes a UserRecord connected to the given role.
func (c *Client) CreateUser(ctx context.Context, in domain.NewUserRecord) (domain.UserRecord, error) {
	data := map[string]any{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"email":     normaliseEmail(in.Email),
		"hasPaid":   in.HasPaid,
		"isActive":  true,
	}
	if in.RoleID != "" {
		data["roles"] = map[string]any{
			"connect": []map[string]any{{"id": in.RoleID}},
		}
	}
	if in.AccessStart != nil {
		data["accessStart"] = in.AccessStart.UTC().Format(time.RFC3339)
	}
	if in.AccessEnd != nil {
		data["accessEnd"] = in.AccessEnd.UTC().Format(time.RFC3339)
	}

	var out struct {
		UserCreate userNode `json:"userCreate"`
	}
	if err := c.run(ctx, userCreateMutation, map[string]any{"data": data}, &out); err != nil {
		return domain.UserRecord{}, fmt.Errorf("records: create user: %w", err)
	}
	return out.UserCreate.toDomain(), nil
}

// GetUserByEmail returns the UserRecord for email, or ErrNotFound.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (domain.UserRecord, error) {
	var out struct {
		UsersList struct {
			Items []userNode `json:"items"`
		} `json:"usersList"`
	}
	if err := c.run(ctx, usersByEmailQuery, map[string]any{"email": normaliseEmail(email)}, &out); err != nil {
		return domain.UserRecord{}, fmt.Errorf("records: get user by email: %w", err)
	}
	if len(out.UsersList.Items) == 0 {
		return domain.UserRecord{}, ErrNotFound
	}
	return out.UsersList.Items[0].toDomain(), nil
}

// SetUserActive flips isActive on a UserRecord.
func (c *Client) SetUserActive(ctx context.Context, userID string, active bool) (domain.UserRecord, error) {
	var out struct {
		UserUpdate userNode `json:"userUpdate"`
	}
	vars := map[string]any{"id": userID, "isActive": active}
	if err := c.run(ctx, userUpdateActiveMutation, vars, &out); err != nil {
		return domain.UserRecord{}, fmt.Errorf("records: set user active: %w", err)
	}
	return out.UserUpdate.toDomain(), nil
}
