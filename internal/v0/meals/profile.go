package meals

import (
	"context"
	"strings"
	"unicode/utf8"

	"canteen/internal/databases"
	"canteen/internal/v0/common"

	log "github.com/sirupsen/logrus"
)

const (
	minProfileName = 2
	maxProfileName = 100
)

// Profile keeps the allergies and food preferences a student declares so the
// kitchen can see them next to each pickup
type Profile struct {
	repo   *Repository
	logger log.FieldLogger
}

func NewProfile(repo *Repository, logger log.FieldLogger) *Profile {
	return &Profile{repo: repo, logger: logger.WithField("component", "profile")}
}

// normalizeProfileName lowercases and trims so "Nuts" and "nuts " collide
func normalizeProfileName(what, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if n := utf8.RuneCountInString(name); n < minProfileName || n > maxProfileName {
		return "", common.BadRequest("%s must be %d to %d characters", what, minProfileName, maxProfileName)
	}
	return name, nil
}

func (p *Profile) ListAllergies(ctx context.Context, studentID int64) ([]ProfileEntry, error) {
	entries, err := p.repo.listProfile(ctx, p.repo.DB(), allergyTable, studentID)
	return entries, common.Wrap(err, "list allergies of student %d", studentID)
}

func (p *Profile) AddAllergy(ctx context.Context, studentID int64, name string) (*ProfileEntry, error) {
	return p.add(ctx, allergyTable, "allergy", studentID, name)
}

func (p *Profile) DeleteAllergy(ctx context.Context, studentID, id int64) error {
	return p.remove(ctx, allergyTable, "allergy", studentID, id)
}

func (p *Profile) ListPreferences(ctx context.Context, studentID int64) ([]ProfileEntry, error) {
	entries, err := p.repo.listProfile(ctx, p.repo.DB(), preferenceTable, studentID)
	return entries, common.Wrap(err, "list food preferences of student %d", studentID)
}

func (p *Profile) AddPreference(ctx context.Context, studentID int64, name string) (*ProfileEntry, error) {
	return p.add(ctx, preferenceTable, "food preference", studentID, name)
}

func (p *Profile) DeletePreference(ctx context.Context, studentID, id int64) error {
	return p.remove(ctx, preferenceTable, "food preference", studentID, id)
}

func (p *Profile) add(ctx context.Context, t profileTable, what string, studentID int64, name string) (*ProfileEntry, error) {
	name, err := normalizeProfileName(what, name)
	if err != nil {
		return nil, err
	}
	entry, err := p.repo.insertProfile(ctx, p.repo.DB(), t, studentID, name)
	if databases.IsUniqueViolation(err) {
		return nil, common.Conflict("%s %q is already listed", what, name)
	}
	if err != nil {
		return nil, common.Internal(err, "add %s for student %d", what, studentID)
	}
	p.logger.WithFields(log.Fields{"student_id": studentID, "kind": what, "name": name}).Debug("profile entry added")
	return entry, nil
}

func (p *Profile) remove(ctx context.Context, t profileTable, what string, studentID, id int64) error {
	ok, err := p.repo.deleteProfile(ctx, p.repo.DB(), t, studentID, id)
	if err != nil {
		return common.Internal(err, "delete %s %d", what, id)
	}
	if !ok {
		return common.NotFound("%s %d not found", what, id)
	}
	return nil
}
