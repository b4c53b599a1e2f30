package gallery

// Reduce applies a to s and returns the next state. It never writes through
// s: any slice that changes is copied first. Unknown actions return s.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case ToggleForm:
		next := s
		next.ImageUploadFormVisible = !s.ImageUploadFormVisible
		if s.ImageUploadFormVisible {
			next.Inputs = Inputs{}
		}
		return next

	case AddItem:
		next := s
		items := make([]Item, 0, len(s.Items)+1)
		items = append(items, act.Item)
		next.Items = append(items, s.Items...)
		next.ImageUploadFormVisible = false
		next.Inputs = Inputs{}
		return next

	case UpdateInputs:
		next := s
		if act.Title != nil {
			next.Inputs.Title = act.Title
		}
		if act.File != nil {
			next.Inputs.File = act.File
		}
		if act.Path != nil {
			next.Inputs.Path = act.Path
		}
		return next

	case ResetInputs:
		next := s
		next.Inputs = Inputs{}
		return next

	case SetItems:
		next := s
		next.Items = act.Items
		if next.Items == nil {
			next.Items = []Item{}
		}
		return next

	case DeleteItem:
		next := s
		items := make([]Item, 0, len(s.Items))
		for _, it := range s.Items {
			if it.ID != act.ID {
				items = append(items, it)
			}
		}
		next.Items = items
		return next

	case SetSearchQuery:
		next := s
		next.SearchQuery = act.Query
		return next

	case ToggleLike:
		return mapItem(s, act.ImageID, func(it Item) Item {
			if it.UserLiked {
				it.LikesCount--
			} else {
				it.LikesCount++
			}
			it.UserLiked = !it.UserLiked
			return it
		})

	case AddComment:
		return mapItem(s, act.ImageID, func(it Item) Item {
			it.CommentsCount++
			return it
		})

	case UpdateLikesCount:
		return mapItem(s, act.ImageID, func(it Item) Item {
			it.LikesCount = act.Count
			return it
		})

	case UpdateCommentsCount:
		return mapItem(s, act.ImageID, func(it Item) Item {
			it.CommentsCount = act.Count
			return it
		})

	default:
		return s
	}
}

// mapItem copies the item list and applies fn to every item with the given id.
func mapItem(s State, id int64, fn func(Item) Item) State {
	next := s
	items := make([]Item, len(s.Items))
	for i, it := range s.Items {
		if it.ID == id {
			it = fn(it)
		}
		items[i] = it
	}
	next.Items = items
	return next
}
