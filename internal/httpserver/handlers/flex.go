package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"infinitetms/internal/apperr"
)

// flexInt accepts both 2025 and "2025"; web forms send either.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return apperr.Validation("expected a number, got " + strconv.Quote(s))
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexAssigneeID is an assignee reference that may be a number, a numeric
// string, or null / "" for "nobody". Set reports whether the key was present
// at all, so an explicit null can be told apart from an omitted field.
type flexAssigneeID struct {
	set bool
	id  *int64
}

func (a *flexAssigneeID) UnmarshalJSON(b []byte) error {
	var n flexInt
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	a.set = true
	a.id = nil
	if n > 0 {
		v := int64(n)
		a.id = &v
	}
	return nil
}

func (a flexAssigneeID) Set() bool { return a.set }

func (a flexAssigneeID) ID() *int64 { return a.id }
