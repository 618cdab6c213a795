package model

// PrayerDay is one day of the prayer-times timetable. All times are strings as published.
type PrayerDay struct {
	Date          string `json:"date"`
	Day           string `json:"day"`
	Month         string `json:"month"`
	FajrBegins    string `json:"fajr_begins"`
	FajrJamaah    string `json:"fajr_jamaah"`
	Sunrise       string `json:"sunrise"`
	ZuhrBegins    string `json:"zuhr_begins"`
	ZuhrJamaah    string `json:"zuhr_jamaah"`
	Asr1Begins    string `json:"asr_1_begins"`
	Asr2Begins    string `json:"asr_2_begins"`
	AsrJamaah     string `json:"asr_jamaah"`
	MaghribBegins string `json:"maghrib_begins"`
	MaghribJamaah string `json:"maghrib_jamaah"`
	IshaBegins    string `json:"isha_begins"`
	IshaJamaah    string `json:"isha_jamaah"`
}

// PrayerTimetable is keyed by dd/mm/yyyy.
type PrayerTimetable map[string]PrayerDay
