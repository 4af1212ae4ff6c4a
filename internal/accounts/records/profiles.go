package records

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
)

func profileData(user domain.UserRecord) map[string]any {
	return map[string]any{
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"email":     user.Email,
		"user": map[string]any{
			"connect": map[string]any{"id": user.ID},
		},
	}
}

// CreateStudentProfile links a new Student to the UserRecord.
func (c *Client) CreateStudentProfile(ctx context.Context, user domain.UserRecord) (domain.RoleProfile, error) {
	var out struct {
		StudentCreate struct {
			ID string `json:"id"`
		} `json:"studentCreate"`
	}
	if err := c.run(ctx, studentCreateMutation, map[string]any{"data": profileData(user)}, &out); err != nil {
		return domain.RoleProfile{}, fmt.Errorf("records: create student: %w", err)
	}
	return domain.RoleProfile{ID: out.StudentCreate.ID, UserID: user.ID, Kind: domain.ProfileStudent}, nil
}

// CreateCoachProfile links a new Coach to the UserRecord.
func (c *Client) CreateCoachProfile(ctx context.Context, user domain.UserRecord) (domain.RoleProfile, error) {
	var out struct {
		CoachCreate struct {
			ID string `json:"id"`
		} `json:"coachCreate"`
	}
	if err := c.run(ctx, coachCreateMutation, map[string]any{"data": profileData(user)}, &out); err != nil {
		return domain.RoleProfile{}, fmt.Errorf("records: create coach: %w", err)
	}
	return domain.RoleProfile{ID: out.CoachCreate.ID, UserID: user.ID, Kind: domain.ProfileCoach}, nil
}

// AssignCoachToStudent connects a Coach to a Student profile.
func (c *Client) AssignCoachToStudent(ctx context.Context, studentID, coachID string) error {
	var out struct {
		StudentUpdate struct {
			ID string `json:"id"`
		} `json:"studentUpdate"`
	}
	vars := map[string]any{"studentId": studentID, "coachId": coachID}
	if err := c.run(ctx, assignCoachMutation, vars, &out); err != nil {
		return fmt.Errorf("records: assign coach: %w", err)
	}
	return nil
}
