package models

import (
	"fmt"
	"time"
)

// RoundType defines the improv format of a round.
type RoundType string

const (
	RoundTypeShortform RoundType = "shortform"
	RoundTypeLongform  RoundType = "longform"
	RoundTypeMusical   RoundType = "musical"
	RoundTypeCharacter RoundType = "character"
	RoundTypeNarrative RoundType = "narrative"
	RoundTypeChallenge RoundType = "challenge"
	RoundTypeCustom    RoundType = "custom"
)

// Valid reports whether t is one of the known round types.
func (t RoundType) Valid() bool {
	switch t {
	case RoundTypeShortform, RoundTypeLongform, RoundTypeMusical, RoundTypeCharacter,
		RoundTypeNarrative, RoundTypeChallenge, RoundTypeCustom:
		return true
	}
	return false
}

// GameStatus defines where the match is in its lifecycle.
type GameStatus string

const (
	GameStatusNotStarted GameStatus = "notStarted"
	GameStatusLive       GameStatus = "live"
	GameStatusFinished   GameStatus = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusNotStarted, GameStatusLive, GameStatusFinished:
		return true
	}
	return false
}

// RoundConfig describes one round
type RoundConfig struct {
	Number     int       `json:"number"`
	Title      string    `json:"title,omitempty"`
	IsMixed    bool      `json:"isMixed"`
	Theme      string    `json:"theme"`
	Type       RoundType `json:"type"`
	MinPlayers int       `json:"minPlayers"`
	MaxPlayers int       `json:"maxPlayers"`
	TimeLimit  *int      `json:"timeLimit"` // seconds, nil for untimed rounds
}

// Clone returns an independent copy of the config.
func (c RoundConfig) Clone() RoundConfig {
	if c.TimeLimit != nil {
		v := *c.TimeLimit
		c.TimeLimit = &v
	}
	return c
}

// Problems lists what keeps c from being the round in progress. An empty
// result means the config is playable.
func (c RoundConfig) Problems() []string {
	var problems []string
	if c.Number < 1 {
		problems = append(problems, fmt.Sprintf("number must be positive, got %d", c.Number))
	}
	if c.Type == "" {
		problems = append(problems, "type is required")
	} else if !c.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown round type %q", c.Type))
	}
	if c.MinPlayers < 1 {
		problems = append(problems, fmt.Sprintf("minPlayers must be at least 1, got %d", c.MinPlayers))
	}
	if c.MaxPlayers < c.MinPlayers {
		problems = append(problems, fmt.Sprintf("maxPlayers (%d) is below minPlayers (%d)", c.MaxPlayers, c.MinPlayers))
	}
	if c.TimeLimit != nil && *c.TimeLimit <= 0 {
		problems = append(problems, fmt.Sprintf("timeLimit must be positive or null, got %d", *c.TimeLimit))
	}
	return problems
}

// PlaceholderRound is the config held in current while between rounds.
func PlaceholderRound() RoundConfig {
	return RoundConfig{
		Number:     0,
		Type:       RoundTypeShortform,
		MinPlayers: 1,
		MaxPlayers: 1,
	}
}

// RoundHistory is the archived record of a completed round
type RoundHistory struct {
	RoundConfig
	Points    TeamPoints    `json:"points"`
	Penalties TeamPenalties `json:"penalties"`
	Notes     string        `json:"notes,omitempty"`
}

// Clone returns an independent copy of the record.
func (h RoundHistory) Clone() RoundHistory {
	h.RoundConfig = h.RoundConfig.Clone()
	return h
}

// RoundTemplate is a saved round config operators can reuse
type RoundTemplate struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Config    RoundConfig `json:"config"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RoundPlaylist is an ordered list of rounds played one after another
type RoundPlaylist struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Rounds    []RoundConfig `json:"rounds"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Clone returns an independent copy of the playlist.
func (p RoundPlaylist) Clone() RoundPlaylist {
	p.Rounds = cloneConfigs(p.Rounds)
	return p
}

// ActivePlaylist is the playback cursor of the running playlist.
type ActivePlaylist struct {
	ID           string `json:"id"`
	CurrentIndex int    `json:"currentIndex"`
}

// RoundSettings holds operator toggles for the round flow
type RoundSettings struct {
	AutoAdvance      bool `json:"autoAdvance"`
	ShowRoundHistory bool `json:"showRoundHistory"`
	ShowUpcoming     bool `json:"showUpcoming"`
	DefaultTimeLimit *int `json:"defaultTimeLimit"`
}

// RoundState is the aggregate owned by the round sequencer
type RoundState struct {
	Current         RoundConfig     `json:"current"`
	History         []RoundHistory  `json:"history"`
	IsBetweenRounds bool            `json:"isBetweenRounds"`
	Templates       []RoundTemplate `json:"templates"`
	Playlists       []RoundPlaylist `json:"playlists"`
	Settings        RoundSettings   `json:"settings"`
	ActivePlaylist  *ActivePlaylist `json:"activePlaylist,omitempty"`
	GameStatus      GameStatus      `json:"gameStatus"`
	NextRoundDraft  *RoundConfig    `json:"nextRoundDraft"`
	Upcoming        []RoundConfig   `json:"upcoming"`
}

// DefaultRoundState returns the round state of a fresh board.
func DefaultRoundState() RoundState {
	return RoundState{
		Current:         PlaceholderRound(),
		History:         []RoundHistory{},
		IsBetweenRounds: true,
		Templates:       []RoundTemplate{},
		Playlists:       []RoundPlaylist{},
		Settings:        RoundSettings{AutoAdvance: true, ShowRoundHistory: true, ShowUpcoming: true},
		GameStatus:      GameStatusNotStarted,
		Upcoming:        []RoundConfig{},
	}
}

// Clone returns a deep copy of the round state.
func (r RoundState) Clone() RoundState {
	out := r
	out.Current = r.Current.Clone()

	out.History = make([]RoundHistory, len(r.History))
	for i, h := range r.History {
		out.History[i] = h.Clone()
	}

	out.Templates = make([]RoundTemplate, len(r.Templates))
	for i, t := range r.Templates {
		t.Config = t.Config.Clone()
		out.Templates[i] = t
	}

	out.Playlists = make([]RoundPlaylist, len(r.Playlists))
	for i, p := range r.Playlists {
		out.Playlists[i] = p.Clone()
	}

	if r.Settings.DefaultTimeLimit != nil {
		v := *r.Settings.DefaultTimeLimit
		out.Settings.DefaultTimeLimit = &v
	}
	if r.ActivePlaylist != nil {
		ap := *r.ActivePlaylist
		out.ActivePlaylist = &ap
	}
	if r.NextRoundDraft != nil {
		d := r.NextRoundDraft.Clone()
		out.NextRoundDraft = &d
	}
	out.Upcoming = cloneConfigs(r.Upcoming)
	return out
}

func cloneConfigs(in []RoundConfig) []RoundConfig {
	out := make([]RoundConfig, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
