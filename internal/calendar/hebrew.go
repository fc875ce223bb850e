package calendar

import "time"

// Offset between the Hebrew elapsed-day count and the proleptic Gregorian
// day number (1 = 0001-01-01).
const hebrewEpochOffset = 1373428

// Holiday is a rest day observed in Israel.
type Holiday struct {
	Date time.Time
	Name string
}

func hebrewLeapYear(y int) bool {
	return (7*y+1)%19 < 7
}

// hebrewElapsedDays counts days from the Hebrew epoch to Rosh Hashanah of
// year y, postponements included.
func hebrewElapsedDays(y int) int {
	months := 235*((y-1)/19) + 12*((y-1)%19) + (7*((y-1)%19)+1)/19
	parts := 204 + 793*(months%1080)
	hours := 5 + 12*months + 793*(months/1080) + parts/1080
	day := 1 + 29*months + hours/24
	p := 1080*(hours%24) + parts%1080

	alt := day
	if p >= 19440 ||
		(day%7 == 2 && p >= 9924 && !hebrewLeapYear(y)) ||
		(day%7 == 1 && p >= 16789 && hebrewLeapYear(y-1)) {
		alt++
	}
	switch alt % 7 {
	case 0, 3, 5:
		alt++
	}
	return alt
}

func roshHashanah(hebrewYear int) time.Time {
	ordinal := hebrewElapsedDays(hebrewYear) - hebrewEpochOffset
	return time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, ordinal-1)
}

// Holidays returns the rest-day holidays falling in the given Gregorian
// year in date order.
func Holidays(year int) []Holiday {
	// Hebrew year year+3761 begins in the autumn of year. Pesach always falls
	// 163 days before that Rosh Hashanah.
	rh := roshHashanah(year + 3761)
	pesach := rh.AddDate(0, 0, -163)

	return []Holiday{
		{Date: pesach, Name: "Pesach"},
		{Date: pesach.AddDate(0, 0, 6), Name: "Pesach VII"},
		{Date: pesach.AddDate(0, 0, 50), Name: "Shavuot"},
		{Date: rh, Name: "Rosh Hashanah I"},
		{Date: rh.AddDate(0, 0, 1), Name: "Rosh Hashanah II"},
		{Date: rh.AddDate(0, 0, 9), Name: "Yom Kippur"},
		{Date: rh.AddDate(0, 0, 14), Name: "Sukkot"},
		{Date: rh.AddDate(0, 0, 21), Name: "Shemini Atzeret"},
	}
}
