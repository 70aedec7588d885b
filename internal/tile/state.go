package tile

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal tile state transition")

type State uint8

const (
	Unknown State = iota
	Asking
	ToLoadFromCache
	ToLoadFromNet
	LoadingFromCache
	LoadingFromNet
	Ready
	Error
	Aborting
)

var stateNames = [...]string{
	Unknown:          "unknown",
	Asking:           "asking",
	ToLoadFromCache:  "to_load_from_cache",
	ToLoadFromNet:    "to_load_from_net",
	LoadingFromCache: "loading_from_cache",
	LoadingFromNet:   "loading_from_net",
	Ready:            "ready",
	Error:            "error",
	Aborting:         "aborting",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

func (s State) IsQueued() bool {
	return s == ToLoadFromCache || s == ToLoadFromNet
}

func (s State) IsLoading() bool {
	return s == LoadingFromCache || s == LoadingFromNet
}

// IsPending reports whether a load for the tile is queued or in flight.
func (s State) IsPending() bool {
	return s == Asking || s.IsQueued() || s.IsLoading() || s == Aborting
}

var transitions = map[State][]State{
	Unknown:          {Asking},
	Asking:           {ToLoadFromCache, ToLoadFromNet, Unknown},
	ToLoadFromCache:  {LoadingFromCache, Unknown},
	ToLoadFromNet:    {LoadingFromNet, Unknown},
	LoadingFromCache: {Ready, Error, Aborting, ToLoadFromNet},
	LoadingFromNet:   {Ready, Error, Aborting},
	Ready:            {Aborting, Unknown},
	Error:            {Aborting, Asking, Unknown},
	Aborting:         {Unknown},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the tile to a new state. An illegal transition is a bug in
// the caller and panics. Leaving Ready releases the payload.
func (t *Tile) Transition(to State) {
	if !CanTransition(t.State, to) {
		panic(fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, t.Key, t.State, to))
	}
	if t.State == Ready {
		t.release()
	}
	t.State = to
}
