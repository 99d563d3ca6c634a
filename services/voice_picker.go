package services

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"
)

const defaultVoice = "pNInz6obpgDQGcFmaJgB" // Adam

// Multilingual stock ElevenLabs voices, grouped by gender
var femaleVoices = []string{
	"EXAVITQu4vr4xnSDxMaL", // Sarah
	"21m00Tcm4TlvDq8ikWAM", // Rachel
	"XrExE9yKIg1WjnnlVkGX", // Matilda
	"pFZP5JQG7iQjIQuC4Bku", // Lily
}

var maleVoices = []string{
	"pNInz6obpgDQGcFmaJgB", // Adam
	"TxGEqnHWrfWFTfGW9XjX", // Josh
	"onwK4e9ZLuTAKqWW03F9", // Daniel
	"nPczCjzI2devNBz1zQrb", // Brian
}

// PickDeterministicVoice returns a stable voice for an interviewer persona so a
// session hears the same interviewer on every question.
func PickDeterministicVoice(personaName, gender string) string {
	var pool []string
	switch strings.ToLower(gender) {
	case "female", "f", "여성":
		pool = femaleVoices
	case "male", "m", "남성":
		pool = maleVoices
	default:
		pool = append(append([]string{}, femaleVoices...), maleVoices...)
	}
	if strings.TrimSpace(personaName) == "" {
		return defaultVoice
	}
	h := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(personaName))))
	idx := binary.BigEndian.Uint16(h[:2]) % uint16(len(pool))
	return pool[idx]
}
