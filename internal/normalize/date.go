package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Date turns a raw date value into ISO YYYY-MM-DD. Accepted inputs are
// YYYY-MM-DD, DD/MM/YYYY and DD-MM-YYYY; anything else yields "".
func Date(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	sep := "/"
	if !strings.Contains(value, "/") {
		sep = "-"
	}
	parts := strings.Split(value, sep)
	if len(parts) != 3 {
		return ""
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var year, month, day string
	if len(parts[0]) == 4 {
		year, month, day = parts[0], parts[1], parts[2]
	} else if len(parts[2]) == 4 {
		year, month, day = parts[2], parts[1], parts[0]
	} else {
		return ""
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return ""
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// Time normalizes HH:MM-ish values (H:MM, HH:MM, HH:MM:SS) to HH:MM,
// returning "" for anything unparseable.
func Time(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 {
		return ""
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return ""
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
