// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/parley-chat/parley/chat"
)

var fuzzyInitOnce sync.Once

// fuzzyScore ranks how well pattern matches text using fzf's matcher.
// Zero means no match. Matching is case-insensitive: both sides are
// lowercased before scoring.
func fuzzyScore(text, pattern string) int {
	if pattern == "" {
		return 0
	}
	fuzzyInitOnce.Do(func() { algo.Init("default") })

	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, _ := algo.FuzzyMatchV2(
		false, // caseSensitive; already lowercased
		true,  // normalize
		true,  // forward
		&chars,
		[]rune(strings.ToLower(pattern)),
		false, // withPos; only the score matters here
		nil,
	)
	if result.Score < 0 {
		return 0
	}
	return result.Score
}

// filterRooms returns the rooms matching pattern, best score first.
// Ties keep the input order.
func filterRooms(rooms []chat.Room, pattern string) []chat.Room {
	type scored struct {
		room  chat.Room
		score int
	}
	var matches []scored
	for _, room := range rooms {
		if score := fuzzyScore(room.Name, pattern); score > 0 {
			matches = append(matches, scored{room, score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	filtered := make([]chat.Room, len(matches))
	for i, match := range matches {
		filtered[i] = match.room
	}
	return filtered
}
