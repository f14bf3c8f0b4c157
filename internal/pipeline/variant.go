package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTone is returned by ParseTone for unrecognized names
	ErrUnknownTone = errors.New("unknown tone")
	// ErrUnknownMode is returned by ParseMode for unrecognized names
	ErrUnknownMode = errors.New("unknown mode")
)

// Tone selects the optional tone adjustment pass
type Tone string

const (
	ToneNone     Tone = "none"
	ToneFormal   Tone = "formal"
	ToneFriendly Tone = "friendly"
)

// Tones lists every tone variant
var Tones = []Tone{ToneNone, ToneFormal, ToneFriendly}

// ParseTone resolves a tone name. The empty string means none.
func ParseTone(name string) (Tone, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ToneNone, nil
	}
	for _, t := range Tones {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTone, name)
}

// Mode selects the optional editing mode pass
type Mode string

const (
	ModeNone    Mode = "none"
	ModeClarity Mode = "clarity"
	ModeShorten Mode = "shorten"
)

// Modes lists every mode variant
var Modes = []Mode{ModeNone, ModeClarity, ModeShorten}

// ParseMode resolves a mode name. The empty string means none.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModeNone, nil
	}
	for _, m := range Modes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMode, name)
}
