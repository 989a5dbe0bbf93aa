package store

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
)

type status struct {
	addr string
	n    int
}

func TestMap(t *testing.T) {
	c := qt.New(t)
	s := New[status]()

	_, ok, err := s.Get("a")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(s.Insert("a", status{addr: "x", n: 1}), qt.IsNil)
	c.Assert(s.Insert("a", status{addr: "y", n: 2}), qt.IsNil)
	v, ok, err := s.Get("a")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, status{addr: "y", n: 2})

	// the returned value is a copy
	v.n = 3
	v2, _, _ := s.Get("a")
	c.Assert(v2.n, qt.Equals, 2)

	c.Assert(s.Remove("a"), qt.IsNil)
	c.Assert(s.Remove("a"), qt.IsNil)
	n, err := s.Len()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestDeleteFunc(t *testing.T) {
	c := qt.New(t)
	s := New[status]()
	for i := 0; i < 10; i++ {
		c.Assert(s.Insert(fmt.Sprint(i), status{n: i}), qt.IsNil)
	}
	deleted, err := s.DeleteFunc(func(_ string, v status) bool {
		return v.n%2 == 0
	})
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.Equals, 5)
	n, _ := s.Len()
	c.Assert(n, qt.Equals, 5)
	_, ok, _ := s.Get("4")
	c.Assert(ok, qt.IsFalse)
}

func TestPoisoned(t *testing.T) {
	c := qt.New(t)
	s := New[status]()
	c.Assert(s.Insert("a", status{}), qt.IsNil)

	c.Assert(func() {
		_ = s.Do(func(m map[string]status) {
			panic("boom")
		})
	}, qt.PanicMatches, "boom")

	c.Assert(s.Insert("b", status{}), qt.Equals, ErrPoisoned)
	_, _, err := s.Get("a")
	c.Assert(err, qt.Equals, ErrPoisoned)
	c.Assert(s.Remove("a"), qt.Equals, ErrPoisoned)
	_, err = s.Len()
	c.Assert(err, qt.Equals, ErrPoisoned)
}

func TestConcurrentInsert(t *testing.T) {
	c := qt.New(t)
	s := New[status]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Insert(fmt.Sprint(i), status{n: i})
		}(i)
	}
	wg.Wait()
	n, err := s.Len()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 50)
}
