// internal/game/engine.go
//
// Core engine for a single memory game.
// Responsibilities:
//   - Build a deck of paired cards from the caller's definitions and shuffle it.
//   - Apply flips, guarding against re-flips and a full selection buffer.
//   - Count moves (one per completed pair selection).
//   - Resolve each pair after a fixed delay: commit a match or turn a mismatch face down.
//   - Notify observers after every mutation.
//
// Notes:
//   - All mutations happen under g.mu; observers run after the lock is released.
//   - A second flip is handled in two phases: record and notify, then evaluate the pair.
//   - Resolution callbacks carry card ids plus the deck generation, never card pointers,
//     so a callback that outlives its deck does nothing.
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoCards          = errors.New("no card definitions")
	ErrDuplicateContent = errors.New("duplicate card content")
	ErrIndexOutOfRange  = errors.New("card index out of range")
)

// Game holds the state of one memory game.
type Game struct {
	mu sync.Mutex

	id    string
	defs  []CardDefinition
	delay time.Duration
	sched Scheduler
	intn  func(n int) int
	log   zerolog.Logger

	cards      []*Card
	selection  []string
	moves      int
	generation uint64
	version    uint64 // bumped on every mutation
	pending    Timer  // resolution timer for the current selection, if any

	done      chan struct{}
	closeOnce sync.Once

	obsMu     sync.Mutex
	observers []subscription
	nextSub   int
}

type subscription struct {
	id int
	fn Observer
}

// New constructs a game from defs and deals the first deck.
func New(defs []CardDefinition, opts ...Option) (*Game, error) {
	if len(defs) == 0 {
		return nil, ErrNoCards
	}
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, ok := seen[d.Content]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateContent, d.Content)
		}
		seen[d.Content] = struct{}{}
	}

	g := &Game{
		id:    uuid.NewString(),
		defs:  append([]CardDefinition(nil), defs...),
		delay: DefaultResolveDelay,
		sched: RealScheduler,
		intn:  cryptoIntn,
		log:   log.Logger,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With().Str("game", g.id).Logger()

	g.StartGame()
	return g, nil
}

// ID returns the game identifier.
func (g *Game) ID() string { return g.id }

// Definitions returns a copy of the definitions the game was built from.
func (g *Game) Definitions() []CardDefinition {
	return append([]CardDefinition(nil), g.defs...)
}

// StartGame discards the current deck and deals a new shuffled one.
// A resolution still pending from the previous deck is cancelled.
func (g *Game) StartGame() {
	g.mu.Lock()
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
	g.generation++
	g.moves = 0
	g.selection = nil
	g.cards = g.deal()
	g.version++
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.log.Debug().Int("cards", len(snap.Cards)).Msg("new deck dealt")
	g.notify(snap)
}

// deal duplicates every definition into two cards and shuffles the result.
func (g *Game) deal() []*Card {
	n := len(g.defs)
	cards := make([]*Card, 0, 2*n)
	for i := 0; i < 2*n; i++ {
		d := g.defs[i%n]
		cards = append(cards, &Card{ID: fmt.Sprintf("%s-%d", d.Content, i), Content: d.Content})
	}
	shuffle(cards, g.intn)
	return cards
}

// shuffle is an in-place Fisher–Yates shuffle: for i from the last index down to 1,
// swap element i with a uniformly chosen j in [0, i].
func shuffle[T any](s []T, intn func(n int) int) {
	for i := len(s) - 1; i > 0; i-- {
		j := intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// FlipCard turns the card at index face up.
// It reports whether the flip was accepted. Flipping a card that is already face up
// (or matched), or flipping while two cards await resolution, is a silent no-op.
// An index outside the deck returns ErrIndexOutOfRange.
func (g *Game) FlipCard(index int) (bool, error) {
	g.mu.Lock()
	if index < 0 || index >= len(g.cards) {
		n := len(g.cards)
		g.mu.Unlock()
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}
	card := g.cards[index]
	if card.Flipped || len(g.selection) == 2 {
		g.mu.Unlock()
		return false, nil
	}

	card.Flipped = true
	g.selection = append(g.selection, card.ID)
	full := len(g.selection) == 2
	if full {
		g.moves++
	}
	g.version++
	gen := g.generation
	snap := g.snapshotLocked()
	g.mu.Unlock()

	// Phase one: the face-up state is visible to every observer before evaluation.
	g.notify(snap)

	if full {
		g.checkForMatch(gen)
	}
	return true, nil
}

// checkForMatch schedules the resolution of the two pending cards.
// Nothing in the deck changes until the timer fires.
func (g *Game) checkForMatch(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation || len(g.selection) != 2 || g.pending != nil {
		return
	}
	first, second := g.cardByID(g.selection[0]), g.cardByID(g.selection[1])
	if first == nil || second == nil {
		return
	}
	ids := [2]string{first.ID, second.ID}
	matched := first.Content == second.Content

	g.log.Debug().Strs("cards", ids[:]).Bool("matched", matched).Int("moves", g.moves).Msg("pair scheduled")
	g.pending = g.sched.AfterFunc(g.delay, func() { g.resolve(gen, ids, matched) })
}

// resolve commits a scheduled outcome against the current deck.
// It does nothing if the deck has been replaced since the pair was scheduled.
func (g *Game) resolve(gen uint64, ids [2]string, matched bool) {
	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		return
	}
	first, second := g.cardByID(ids[0]), g.cardByID(ids[1])
	if first == nil || second == nil {
		g.mu.Unlock()
		return
	}
	if matched {
		first.Matched, second.Matched = true, true
	} else {
		first.Flipped, second.Flipped = false, false
	}
	g.selection = nil
	g.pending = nil
	g.version++
	snap := g.snapshotLocked()
	g.mu.Unlock()

	if snap.GameOver {
		g.log.Info().Int("moves", snap.Moves).Msg("game complete")
	}
	g.notify(snap)
}

func (g *Game) cardByID(id string) *Card {
	for _, c := range g.cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Cards returns a copy of the deck in display order.
func (g *Game) Cards() []Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.copyCardsLocked()
}

// Selection returns the ids of the pending cards in flip order.
func (g *Game) Selection() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.selection...)
}

// Moves returns the number of completed pair selections.
func (g *Game) Moves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moves
}

// GameOver reports whether every card in the deck is matched.
func (g *Game) GameOver() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gameOverLocked()
}

// Phase reports the selection state of the current pair.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return phaseOf(len(g.selection))
}

// Snapshot returns a consistent copy of the whole game state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) gameOverLocked() bool {
	if len(g.cards) == 0 {
		return false
	}
	for _, c := range g.cards {
		if !c.Matched {
			return false
		}
	}
	return true
}

func (g *Game) copyCardsLocked() []Card {
	out := make([]Card, len(g.cards))
	for i, c := range g.cards {
		out[i] = *c
	}
	return out
}

func (g *Game) snapshotLocked() Snapshot {
	return Snapshot{
		GameID:    g.id,
		Version:   g.version,
		Cards:     g.copyCardsLocked(),
		Selection: append([]string{}, g.selection...),
		Moves:     g.moves,
		Phase:     phaseOf(len(g.selection)),
		GameOver:  g.gameOverLocked(),
	}
}

func phaseOf(pending int) Phase {
	switch pending {
	case 0:
		return PhaseEmpty
	case 1:
		return PhaseOnePending
	default:
		return PhaseResolving
	}
}

// Subscribe registers fn for change notifications. The returned func unregisters it.
func (g *Game) Subscribe(fn Observer) (cancel func()) {
	g.obsMu.Lock()
	defer g.obsMu.Unlock()
	g.nextSub++
	id := g.nextSub
	g.observers = append(g.observers, subscription{id: id, fn: fn})
	return func() {
		g.obsMu.Lock()
		defer g.obsMu.Unlock()
		for i, s := range g.observers {
			if s.id == id {
				g.observers = append(g.observers[:i:i], g.observers[i+1:]...)
				return
			}
		}
	}
}

// notify calls observers in registration order.
func (g *Game) notify(snap Snapshot) {
	g.obsMu.Lock()
	subs := append([]subscription(nil), g.observers...)
	g.obsMu.Unlock()
	for _, s := range subs {
		s.fn(snap)
	}
}

// Done is closed once the game has been closed.
func (g *Game) Done() <-chan struct{} { return g.done }

// Close stops any pending resolution and drops all observers. It is safe to call twice.
func (g *Game) Close() {
	g.closeOnce.Do(func() { close(g.done) })
	g.mu.Lock()
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
	g.generation++
	g.mu.Unlock()

	g.obsMu.Lock()
	g.observers = nil
	g.obsMu.Unlock()
}
