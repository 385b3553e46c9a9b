package services

import (
	"strings"
	"sync"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/pl"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// countryHolidays lists the public holidays the digest can name per
// tenant country code. China is handled separately through the lunar
// calendar because its dates move every year.
var countryHolidays = map[string][]*cal.Holiday{
	"AT": at.Holidays,
	"AU": au.HolidaysNSW,
	"BE": be.Holidays,
	"BR": br.Holidays,
	"CA": ca.Holidays,
	"CH": ch.Holidays,
	"DE": de.Holidays,
	"DK": dk.Holidays,
	"ES": es.Holidays,
	"FI": fi.Holidays,
	"FR": fr.Holidays,
	"GB": gb.Holidays,
	"IE": ie.Holidays,
	"IT": it.Holidays,
	"JP": jp.Holidays,
	"NL": nl.Holidays,
	"NO": no.Holidays,
	"NZ": nz.Holidays,
	"PL": pl.Holidays,
	"PT": pt.Holidays,
	"SE": se.Holidays,
	"US": us.Holidays,
}

const countryChina = "CN"

// HolidayService tells the morning digest when the property's country is
// on a public holiday, since arrivals and complaint volume shift with them.
type HolidayService struct {
	mu        sync.Mutex
	calendars map[string]*cal.Calendar
}

func NewHolidayService() *HolidayService {
	return &HolidayService{calendars: make(map[string]*cal.Calendar)}
}

func (s *HolidayService) calendarFor(country string) *cal.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.calendars[country]; ok {
		return c
	}
	holidays, ok := countryHolidays[country]
	if !ok {
		return nil
	}
	c := &cal.Calendar{Name: country}
	c.AddHoliday(holidays...)
	s.calendars[country] = c
	return c
}

// PublicHoliday names the holiday falling on day in country. Observed
// dates count; China's make-up working days do not.
func (s *HolidayService) PublicHoliday(day time.Time, country string) (string, bool) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == countryChina {
		return chinaHoliday(day)
	}

	c := s.calendarFor(country)
	if c == nil {
		return "", false
	}
	actual, observed, h := c.IsHoliday(day)
	if !(actual || observed) || h == nil {
		return "", false
	}
	if !actual {
		return h.Name + " (observed)", true
	}
	return h.Name, true
}

func chinaHoliday(day time.Time) (string, bool) {
	solar := calendar.NewSolarFromDate(day)
	h := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())
	if h == nil || h.IsWork() {
		return "", false
	}
	return h.GetName(), true
}
