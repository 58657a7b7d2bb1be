package core

import (
	"colonyledger/pkg/domain"
	"time"
)

// decode maps a stored row onto an Animal using the configured columns.
// Unparseable dates and unknown labels decode to zero values.
func (s *Service) decode(rec domain.Record) domain.Animal {
	c := s.cfg.Columns
	f := rec.Fields
	a := domain.Animal{
		RecordID:  rec.ID,
		Status:    s.cfg.Labels.ParseStatus(f.String(c.Status)),
		Strain:    f.String(c.Strain),
		Cage:      f.String(c.Cage),
		AnimalID:  f.String(c.AnimalID),
		Gender:    s.cfg.Labels.ParseGender(f.String(c.Gender)),
		PartnerID: f.String(c.PartnerID),
		FatherID:  f.String(c.FatherID),
		MotherID:  f.String(c.MotherID),

		StoredStatus: f.String(c.Status),
		StoredGender: f.String(c.Gender),
	}
	if n, ok := domain.AsInt64(f[c.ID]); ok {
		a.NumericID = n
	}
	a.Born, _ = s.cfg.ParseDate(f.String(c.Born))
	a.BreedingDate, _ = s.cfg.ParseDate(f.String(c.BreedingDate))
	a.WeaningDate, _ = s.cfg.ParseDate(f.String(c.WeaningDate))
	return a
}

// encode renders an Animal as a full row for insertion. Empty optional
// columns are omitted.
func (s *Service) encode(a domain.Animal) domain.Fields {
	c := s.cfg.Columns
	f := domain.Fields{
		c.ID:       a.NumericID,
		c.Status:   s.cfg.Labels.StatusLabel(a.Status),
		c.Strain:   a.Strain,
		c.Cage:     a.Cage,
		c.AnimalID: a.AnimalID,
		c.Gender:   s.cfg.Labels.GenderLabel(a.Gender),
	}
	optional := map[string]string{
		c.PartnerID:    a.PartnerID,
		c.FatherID:     a.FatherID,
		c.MotherID:     a.MotherID,
		c.Born:         s.cfg.FormatDate(a.Born),
		c.BreedingDate: s.cfg.FormatDate(a.BreedingDate),
		c.WeaningDate:  s.cfg.FormatDate(a.WeaningDate),
	}
	for col, v := range optional {
		if v != "" {
			f[col] = v
		}
	}
	return f
}

// FormatDate renders t in the configured layout; the zero time renders as "".
func (c Config) FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(c.DateLayout)
}

// ParseDate accepts the configured layout and the ISO date form hosted
// stores emit for date-typed columns. Empty input yields the zero time.
func (c Config) ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	layouts := []string{c.DateLayout, "2006-01-02", time.RFC3339}
	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
