package gallery

import "minniegallery/internal/gateway"

// Action is a discrete state transition understood by Reduce.
type Action interface {
	actionName() string
}

type ToggleForm struct{}

type AddItem struct {
	Item Item
}

// UpdateInputs merges its non-nil fields into the form inputs.
type UpdateInputs struct {
	Title *string
	File  *gateway.File
	Path  *string
}

type ResetInputs struct{}

// SetItems replaces the item list after a full fetch. Seq is the value
// returned by Store.BeginFetch for that fetch; zero means untagged.
type SetItems struct {
	Items []Item
	Seq   uint64
}

type DeleteItem struct {
	ID int64
}

type SetSearchQuery struct {
	Query string
}

type ToggleLike struct {
	ImageID int64
	UserID  string
}

type AddComment struct {
	ImageID int64
	Comment string
	UserID  string
}

type UpdateLikesCount struct {
	ImageID int64
	Count   int
}

type UpdateCommentsCount struct {
	ImageID int64
	Count   int
}

func (ToggleForm) actionName() string          { return "TOGGLE_FORM" }
func (AddItem) actionName() string             { return "ADD_ITEM" }
func (UpdateInputs) actionName() string        { return "UPDATE_INPUTS" }
func (ResetInputs) actionName() string         { return "RESET_INPUTS" }
func (SetItems) actionName() string            { return "SET_ITEMS" }
func (DeleteItem) actionName() string          { return "DELETE_ITEM" }
func (SetSearchQuery) actionName() string      { return "SET_SEARCH_QUERY" }
func (ToggleLike) actionName() string          { return "TOGGLE_LIKE" }
func (AddComment) actionName() string          { return "ADD_COMMENT" }
func (UpdateLikesCount) actionName() string    { return "UPDATE_LIKES_COUNT" }
func (UpdateCommentsCount) actionName() string { return "UPDATE_COMMENTS_COUNT" }

// Name returns the wire name of an action, used in logs.
func Name(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}
