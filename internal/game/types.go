// internal/game/types.go
//
// Core type definitions for the memory (pair matching) game engine.
// Defines:
//   - CardDefinition: caller supplied face value, duplicated into a pair.
//   - Card: one card instance in the deck.
//   - Phase: progress of the current pair selection.
//   - Snapshot: immutable view handed to observers and the HTTP layer.

package game

// CardDefinition is the external input for one pair of cards.
// Content is opaque to the engine; it is only compared for equality.
type CardDefinition struct {
	Content string `json:"content" yaml:"content"`
}

// Card is a single card instance in the deck.
type Card struct {
	ID      string `json:"id"`      // "<content>-<position>", unique per deck; display keying only
	Content string `json:"content"` // face value copied from the definition
	Flipped bool   `json:"flipped"` // face up (stays true once matched)
	Matched bool   `json:"matched"` // permanently resolved as part of a pair
}

// Phase describes the selection buffer of the current pair.
//   - "empty":    no card pending.
//   - "one":      one card face up, waiting for the second.
//   - "resolving": two cards face up, resolution timer scheduled.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseOnePending Phase = "one"
	PhaseResolving  Phase = "resolving"
)

// Snapshot is a point-in-time copy of a game's state.
type Snapshot struct {
	GameID    string   `json:"gameId"`
	Version   uint64   `json:"version"` // increases with every mutation
	Cards     []Card   `json:"cards"`
	Selection []string `json:"selection"` // ids of pending cards, in flip order
	Moves     int      `json:"moves"`
	Phase     Phase    `json:"phase"`
	GameOver  bool     `json:"gameOver"`
}

// Observer is notified after every state mutation.
type Observer func(Snapshot)
