package session

import (
	"context"
	"fmt"

	"starcleaner/pkg/stars"
)

// ActionKind identifies a user action emitted by a front-end
type ActionKind string

const (
	ActionToggleSelect    ActionKind = "toggle-select"
	ActionSelectAll       ActionKind = "select-all"
	ActionUnstar          ActionKind = "request-unstar"
	ActionBatchUnstar     ActionKind = "request-batch-unstar"
	ActionChangeSort      ActionKind = "change-sort"
	ActionToggleDirection ActionKind = "toggle-direction"
	ActionSetFilter       ActionKind = "set-filter"
	ActionLoadMore        ActionKind = "load-more"
	ActionSubmitToken     ActionKind = "submit-token"
	ActionReload          ActionKind = "reload"
	ActionOpen            ActionKind = "open"
)

// Action is a user action. ID is used by toggle-select, request-unstar and open,
// Field by change-sort and Text by set-filter and submit-token.
type Action struct {
	Kind  ActionKind
	ID    int64
	Field stars.SortField
	Text  string
}

// Outcome carries whatever an action produced besides an error
type Outcome struct {
	Fetch    *FetchResult
	Results  []ItemResult
	Selected bool
}

// Dispatch applies a front-end action to the session
func (c *Controller) Dispatch(ctx context.Context, action Action) (Outcome, error) {
	switch action.Kind {
	case ActionToggleSelect:
		selected, err := c.ToggleSelection(action.ID)
		return Outcome{Selected: selected}, err

	case ActionSelectAll:
		// Acts as a toggle: with everything visible already selected it clears.
		if c.allVisibleSelected() {
			c.ClearSelection()
			return Outcome{}, nil
		}
		c.SelectAllVisible()
		return Outcome{Selected: true}, nil

	case ActionUnstar:
		return Outcome{}, c.UnstarOne(ctx, action.ID)

	case ActionBatchUnstar:
		return Outcome{Results: c.UnstarSelected(ctx)}, nil

	case ActionChangeSort:
		return Outcome{}, c.SelectSortField(action.Field)

	case ActionToggleDirection:
		c.ToggleDirection()
		return Outcome{}, nil

	case ActionSetFilter:
		c.ChangeFilter(action.Text)
		return Outcome{}, nil

	case ActionLoadMore:
		res, err := c.FetchNextPage(ctx)
		return Outcome{Fetch: &res}, err

	case ActionReload:
		res, err := c.Reload(ctx)
		return Outcome{Fetch: &res}, err

	case ActionOpen:
		return Outcome{}, c.Open(action.ID)

	case ActionSubmitToken:
		res, err := c.SubmitToken(ctx, action.Text)
		return Outcome{Fetch: &res}, err

	default:
		return Outcome{}, fmt.Errorf("unknown action %q", action.Kind)
	}
}

func (c *Controller) allVisibleSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.visible) == 0 {
		return false
	}
	for _, repo := range c.visible {
		if !c.selection.Has(repo.ID) {
			return false
		}
	}
	return true
}
