// Package assistant implements the storefront's scripted beauty assistant as
// an explicit state machine. The engine keeps no conversation state; the
// client echoes the returned state and quiz answers on the next turn.
package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/catalog"
	"github.com/glowhaus/storefront-backend/internal/orders"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

type State string

const (
	StateIdle     State = "idle"
	StateQuiz     State = "quiz"
	StateTracking State = "tracking"
	StateReturn   State = "return"
)

// States lists every state in display order.
var States = []State{StateIdle, StateQuiz, StateTracking, StateReturn}

// QuizStep is the question currently asked inside the quiz state.
type QuizStep string

const (
	StepSkinType QuizStep = "skin_type"
	StepConcern  QuizStep = "concern"
)

type Action string

const (
	ActionMenu     Action = "menu"
	ActionQuiz     Action = "quiz"
	ActionTrack    Action = "track"
	ActionReturn   Action = "return"
	ActionAnswer   Action = "answer"
	ActionAddToBag Action = "add_to_bag"
	ActionText     Action = "text"
)

// Actions lists every action a turn may carry.
var Actions = []Action{ActionMenu, ActionQuiz, ActionTrack, ActionReturn, ActionAnswer, ActionAddToBag, ActionText}

// Turn is one user interaction.
type Turn struct {
	SessionID string     `json:"-"`
	UserID    *uuid.UUID `json:"-"`
	State     State      `json:"state"`
	Step      QuizStep   `json:"step,omitempty"`
	// SkinType carries the first quiz answer into the concern step.
	SkinType string `json:"skinType,omitempty"`
	Action   Action `json:"action"`
	Value    string `json:"value,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Option is a tappable reply button.
type Option struct {
	Label  string `json:"label"`
	Action Action `json:"action"`
	Value  string `json:"value,omitempty"`
}

// Reply is what the assistant says back, plus the state to echo next turn.
type Reply struct {
	State           State                `json:"state"`
	Step            QuizStep             `json:"step,omitempty"`
	SkinType        string               `json:"skinType,omitempty"`
	Messages        []string             `json:"messages"`
	Options         []Option             `json:"options,omitempty"`
	Recommendations []catalog.Product    `json:"recommendations,omitempty"`
	Order           *orders.TrackingView `json:"order,omitempty"`
	Cart            *cart.Snapshot       `json:"cart,omitempty"`
}

func (r *Reply) say(format string, args ...any) {
	if len(args) == 0 {
		r.Messages = append(r.Messages, format)
		return
	}
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

type productIndex interface {
	Products(ctx context.Context) ([]catalog.Product, error)
}

type orderTracker interface {
	Track(ctx context.Context, ref string) (*orders.TrackingView, error)
}

type bagAdder interface {
	Add(ctx context.Context, owner cart.Owner, input cart.AddInput) (*cart.Snapshot, error)
}

type transitionKey struct {
	from   State
	action Action
}

// effect fills in the reply. The reply arrives with State set to the
// transition's target; an effect may move it elsewhere.
type effect func(ctx context.Context, e *Engine, turn Turn, reply *Reply) error

type transition struct {
	to     State
	effect effect
}

// Engine steps the dialogue through its transition table.
type Engine struct {
	table    map[transitionKey]transition
	script   *Script
	products productIndex
	tracker  orderTracker
	bag      bagAdder
	prefs    PreferenceStore
	logg     *logger.Logger
}

// Params groups the Engine's collaborators. Prefs is optional.
type Params struct {
	Script   *Script
	Products productIndex
	Tracker  orderTracker
	Bag      bagAdder
	Prefs    PreferenceStore
	Logger   *logger.Logger
}

func NewEngine(p Params) (*Engine, error) {
	switch {
	case p.Script == nil:
		return nil, fmt.Errorf("assistant script required")
	case p.Products == nil:
		return nil, fmt.Errorf("product index required")
	case p.Tracker == nil:
		return nil, fmt.Errorf("order tracker required")
	case p.Bag == nil:
		return nil, fmt.Errorf("bag required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{
		table:    defaultTable(),
		script:   p.Script,
		products: p.Products,
		tracker:  p.Tracker,
		bag:      p.Bag,
		prefs:    p.Prefs,
		logg:     logg,
	}, nil
}

func defaultTable() map[transitionKey]transition {
	t := map[transitionKey]transition{}
	// Navigation is available from every state.
	for _, from := range States {
		t[transitionKey{from, ActionMenu}] = transition{StateIdle, showMenu}
		t[transitionKey{from, ActionQuiz}] = transition{StateQuiz, startQuiz}
		t[transitionKey{from, ActionTrack}] = transition{StateTracking, promptOrderRef}
		t[transitionKey{from, ActionReturn}] = transition{StateReturn, showReturnPolicy}
		t[transitionKey{from, ActionAddToBag}] = transition{from, addToBag}
	}
	t[transitionKey{StateIdle, ActionAnswer}] = transition{StateIdle, showMenu}
	t[transitionKey{StateIdle, ActionText}] = transition{StateIdle, interpret}

	t[transitionKey{StateQuiz, ActionAnswer}] = transition{StateQuiz, answerQuiz}
	t[transitionKey{StateQuiz, ActionText}] = transition{StateQuiz, answerQuizText}

	t[transitionKey{StateTracking, ActionAnswer}] = transition{StateIdle, trackOrder}
	t[transitionKey{StateTracking, ActionText}] = transition{StateIdle, trackOrderText}

	t[transitionKey{StateReturn, ActionAnswer}] = transition{StateIdle, showMenu}
	t[transitionKey{StateReturn, ActionText}] = transition{StateReturn, interpret}
	return t
}

// Step applies one turn. Unknown states restart at idle.
func (e *Engine) Step(ctx context.Context, turn Turn) (*Reply, error) {
	if turn.State == "" || !knownState(turn.State) {
		turn.State = StateIdle
	}
	if turn.Action == "" {
		turn.Action = ActionText
		if strings.TrimSpace(turn.Text) == "" {
			turn.Action = ActionMenu
		}
	}
	tr, ok := e.table[transitionKey{turn.State, turn.Action}]
	if !ok {
		tr = e.table[transitionKey{StateIdle, ActionMenu}]
	}
	reply := &Reply{State: tr.to, Messages: []string{}}
	if err := tr.effect(ctx, e, turn, reply); err != nil {
		return nil, err
	}
	if reply.State != StateQuiz {
		reply.Step = ""
		reply.SkinType = ""
	}
	return reply, nil
}

// Unreachable lists states no transition leads to from idle.
func (e *Engine) Unreachable() []State {
	seen := map[State]bool{StateIdle: true}
	queue := []State{StateIdle}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]
		for key, tr := range e.table {
			if key.from == from && !seen[tr.to] {
				seen[tr.to] = true
				queue = append(queue, tr.to)
			}
		}
	}
	var missing []State
	for _, s := range States {
		if !seen[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// Missing lists state/action pairs without a transition, as "state:action".
func (e *Engine) Missing() []string {
	var missing []string
	for _, s := range States {
		for _, a := range Actions {
			if _, ok := e.table[transitionKey{s, a}]; !ok {
				missing = append(missing, string(s)+":"+string(a))
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func knownState(s State) bool {
	for _, candidate := range States {
		if candidate == s {
			return true
		}
	}
	return false
}

func menuOptions() []Option {
	return []Option{
		{Label: "Find my skincare match", Action: ActionQuiz},
		{Label: "Track my order", Action: ActionTrack},
		{Label: "Returns & exchanges", Action: ActionReturn},
	}
}
