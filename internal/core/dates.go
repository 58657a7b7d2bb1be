package core

import (
	"fmt"
	"strings"
	"time"
)

// DateBorn returns the birth date of a litter given its weaning date, both in
// M/D/YYYY form: DateBorn("1/2/2019") == "12/12/2018".
func DateBorn(weaningDate string) (string, error) {
	return DefaultConfig().DateBorn(weaningDate)
}

// DateBorn is the configured-layout form of the package-level DateBorn. The
// weaning date may also be given in the ISO form the hosted store emits; the
// result is always in the configured layout.
func (c Config) DateBorn(weaningDate string) (string, error) {
	if strings.TrimSpace(weaningDate) == "" {
		return "", fmt.Errorf("weaning date required")
	}
	weaned, err := c.ParseDate(strings.TrimSpace(weaningDate))
	if err != nil {
		return "", fmt.Errorf("parse weaning date %q: %w", weaningDate, err)
	}
	return c.FormatDate(c.bornFromWeaning(weaned)), nil
}

// WeaningDate returns the date a litter born on born should be weaned.
func (c Config) WeaningDate(born time.Time) time.Time {
	return born.AddDate(0, 0, c.WeaningDays)
}

func (c Config) bornFromWeaning(weaned time.Time) time.Time {
	return weaned.AddDate(0, 0, -c.WeaningDays)
}
