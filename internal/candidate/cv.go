package candidate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/pkg/models"
)

// CVMergeResult counts the section rows an extraction added to a profile.
type CVMergeResult struct {
	Skills         int  `json:"skills"`
	Education      int  `json:"education"`
	Experience     int  `json:"experience"`
	Certifications int  `json:"certifications"`
	Awards         int  `json:"awards"`
	ProfileUpdated bool `json:"profile_updated"`
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// cleanDate keeps a date only when it parses as YYYY-MM-DD. Model output
// often carries "Present" or a bare year.
func cleanDate(d *string) *string {
	if d == nil {
		return nil
	}
	v := strings.TrimSpace(*d)
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return nil
	}
	return &v
}

// ApplyExtractedCV merges an extraction into a profile. Scalar fields are only
// filled when empty and section rows already on the profile are skipped.
func (s *Service) ApplyExtractedCV(ctx context.Context, profileID string, cv *models.CVExtraction) (*CVMergeResult, error) {
	p, err := s.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	res := &CVMergeResult{}

	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
			res.ProfileUpdated = true
		}
	}
	fill(&p.PhoneNumber, cv.PhoneNumber)
	fill(&p.Nationality, cv.Nationality)
	fill(&p.Bio, cv.Bio)
	if len(p.PhoneNumber) > 20 {
		p.PhoneNumber = p.PhoneNumber[:20]
	}
	if res.ProfileUpdated {
		if err := s.repo.Profile.UpdateProfile(ctx, p); err != nil {
			return nil, err
		}
		s.rec.Record(ctx, "UserProfile", p.ID, "user_profiles", false)
	}

	if res.Skills, err = mergeSection(ctx, s.Skills, profileID, cv.Skills,
		func(v *models.Skill) string { return norm(v.SkillName) },
		func(v *models.Skill) bool { return v.SkillName != "" }); err != nil {
		return nil, err
	}
	if res.Education, err = mergeSection(ctx, s.Education, profileID, cv.Education,
		func(v *models.Education) string { return norm(v.Institution) + "|" + norm(v.Degree) },
		func(v *models.Education) bool {
			v.StartDate, v.EndDate = cleanDate(v.StartDate), cleanDate(v.EndDate)
			return v.Institution != "" || v.Degree != ""
		}); err != nil {
		return nil, err
	}
	if res.Experience, err = mergeSection(ctx, s.Experience, profileID, cv.Experience,
		func(v *models.Experience) string { return norm(v.Organization) + "|" + norm(v.Title) },
		func(v *models.Experience) bool {
			v.StartDate, v.EndDate = cleanDate(v.StartDate), cleanDate(v.EndDate)
			return v.Organization != "" || v.Title != ""
		}); err != nil {
		return nil, err
	}
	if res.Certifications, err = mergeSection(ctx, s.Certifications, profileID, cv.Certifications,
		func(v *models.CertificationLicense) string { return norm(v.Name) },
		func(v *models.CertificationLicense) bool {
			v.DateIssued, v.ValidUntil = cleanDate(v.DateIssued), cleanDate(v.ValidUntil)
			return v.Name != ""
		}); err != nil {
		return nil, err
	}
	if res.Awards, err = mergeSection(ctx, s.Awards, profileID, cv.Awards,
		func(v *models.AwardAchievement) string { return norm(v.Title) },
		func(v *models.AwardAchievement) bool {
			if v.Year != nil && (*v.Year < 1900 || *v.Year > 2100) {
				v.Year = nil
			}
			return v.Title != ""
		}); err != nil {
		return nil, err
	}

	s.logger.Info("cv applied to profile",
		"profile_id", profileID,
		"skills", res.Skills,
		"education", res.Education,
		"experience", res.Experience,
	)
	return res, nil
}

// mergeSection adds the rows of in whose key is not already on the profile.
// prepare cleans a row in place and reports whether it is worth keeping.
func mergeSection[T any](ctx context.Context, sec *Section[T], profileID string, in []T, key func(*T) string, prepare func(*T) bool) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}
	existing, err := sec.List(ctx, profileID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for i := range existing {
		seen[key(&existing[i])] = struct{}{}
	}

	added := 0
	for i := range in {
		item := in[i]
		if !prepare(&item) {
			continue
		}
		k := key(&item)
		if _, dup := seen[k]; dup {
			continue
		}
		if _, err := sec.Add(ctx, profileID, &item); err != nil {
			if errors.Is(err, apperr.ErrInvalid) {
				continue
			}
			return added, err
		}
		seen[k] = struct{}{}
		added++
	}
	return added, nil
}
