package config

import (
	"net/url"
	"strings"
)

func (l LinkConfig) siteBase(venue string) string {
	if venue == "hippie" {
		return strings.TrimRight(l.HippieBaseURL, "/")
	}
	return strings.TrimRight(l.ManorBaseURL, "/")
}

// OrganiserURL is the private management link emailed to the organiser.
func (l LinkConfig) OrganiserURL(venue, organiserToken string) string {
	return l.siteBase(venue) + "/occasion/" + organiserToken
}

// ShareURL is the public purchase link the organiser passes to friends.
func (l LinkConfig) ShareURL(venue, shareToken string) string {
	return l.siteBase(venue) + "/occasion/buy/" + shareToken
}

// GuestListURL lets a purchaser name the guests on their booking.
func (l LinkConfig) GuestListURL(guestListToken string) string {
	if guestListToken == "" {
		return ""
	}
	return strings.TrimRight(l.GuestListBaseURL, "/") + "/guest-list?token=" + url.QueryEscape(guestListToken)
}
