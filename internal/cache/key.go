package cache

import (
	"fmt"
	"strings"
)

// Family groups the keys of one resource kind for one owner, e.g. every cached
// workout page of a user. Mutations are queued and invalidated per family.
type Family struct {
	Kind  string
	Owner string
}

func (f Family) String() string {
	return f.Kind + "|" + f.Owner
}

// Key identifies a cached value: (kind, owner, params...).
type Key struct {
	Kind   string
	Owner  string
	Params string
}

func NewKey(kind, owner string, params ...any) Key {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprint(p)
	}
	return Key{Kind: kind, Owner: owner, Params: strings.Join(parts, ",")}
}

func (k Key) Family() Family {
	return Family{Kind: k.Kind, Owner: k.Owner}
}

func (k Key) String() string {
	return k.Kind + "|" + k.Owner + "|" + k.Params
}

type KeyPredicate func(Key) bool

func FamilyMatch(f Family) KeyPredicate {
	return func(k Key) bool { return k.Family() == f }
}

func ExactMatch(key Key) KeyPredicate {
	return func(k Key) bool { return k == key }
}

func both(a, b KeyPredicate) KeyPredicate {
	if b == nil {
		return a
	}
	return func(k Key) bool { return a(k) && b(k) }
}

// PageSize is the fixed size of a workout history page.
const PageSize = 10

// IsLastPage reports whether a page of n items is the final one.
func IsLastPage(n, size int) bool {
	return n < size
}
