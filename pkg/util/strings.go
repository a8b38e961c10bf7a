package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFloatDefault parses a numeric cell, returning def when empty or not a number.
func ParseFloatDefault(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return def
	}
	return v
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PadID left-pads a numeric participant id to three digits ("7" -> "007").
// Non-numeric ids are returned unchanged.
func PadID(id string) string {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n < 0 {
		return id
	}
	return fmt.Sprintf("%03d", n)
}

// UnpadID strips leading zeros from a numeric participant id ("007" -> "7").
func UnpadID(id string) string {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n < 0 {
		return id
	}
	return strconv.Itoa(n)
}
