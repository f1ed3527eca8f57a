package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID in the format "{prefix}{hex_string}".
// Uses math/rand/v2; IDs are not cryptographic, they only need to be unique
// within the store.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateAlertID generates a unique alert ID with "alert_" prefix.
func GenerateAlertID() string {
	return GenerateRandomID("alert_", 32)
}

// GenerateAppointmentID generates a unique appointment ID with "appt_" prefix.
func GenerateAppointmentID() string {
	return GenerateRandomID("appt_", 32)
}

// GenerateCaseMessageID generates a unique case message ID with "cmsg_" prefix.
func GenerateCaseMessageID() string {
	return GenerateRandomID("cmsg_", 32)
}
