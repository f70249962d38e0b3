package web

import (
	"time"

	"golang.org/x/text/language"
)

// shortDates maps supported locales to a short date layout. The first entry
// is the fallback.
var shortDates = []struct {
	tag    language.Tag
	layout string
}{
	{language.AmericanEnglish, "1/2/06"},
	{language.BritishEnglish, "02/01/2006"},
	{language.German, "02.01.06"},
	{language.French, "02/01/2006"},
	{language.Spanish, "2/1/06"},
	{language.Dutch, "02-01-2006"},
	{language.Japanese, "2006/01/02"},
	{language.Korean, "06. 1. 2."},
	{language.Chinese, "2006/1/2"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(shortDates))
	for i, d := range shortDates {
		tags[i] = d.tag
	}
	return language.NewMatcher(tags)
}()

// ShortDateLayout picks the short date layout for an Accept-Language header
func ShortDateLayout(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return shortDates[0].layout
	}
	_, index, confidence := dateMatcher.Match(tags...)
	if confidence == language.No {
		return shortDates[0].layout
	}
	return shortDates[index].layout
}

// ShortDateFormatter formats dates for an Accept-Language header in loc
func ShortDateFormatter(acceptLanguage string, loc *time.Location) func(time.Time) string {
	layout := ShortDateLayout(acceptLanguage)
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time) string {
		return t.In(loc).Format(layout)
	}
}
