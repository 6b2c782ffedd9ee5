package stack

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func build(items ...string) *Stack {
	s := New()
	for _, item := range items {
		s.Push([]byte(item))
	}
	return s
}

func dump(s *Stack) []string {
	items := make([]string, 0, s.Len())
	for _, v := range s.Items() {
		items = append(items, string(v))
	}
	return items
}

func TestStack(t *testing.T) {
	s := New()

	for i := 10; i < 20; i++ {
		s.Push([]byte(strconv.Itoa(i)))
	}

	for i := 19; !s.Empty(); i-- {
		v, err := s.Pop()
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(i), string(v))
	}

	require.Equal(t, s.Len(), 0)
	_, err := s.Pop()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestStackOperations(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		op     func(s *Stack) error
		after  []string
		err    error
	}{
		{"peek", []string{"a", "b"}, func(s *Stack) error {
			v, err := s.Peek(1)
			if err == nil {
				s.Push(v)
			}
			return err
		}, []string{"a", "b", "a"}, nil},
		{"peek out of range", []string{"a"}, func(s *Stack) error {
			_, err := s.Peek(1)
			return err
		}, []string{"a"}, ErrInvalidIndex},
		{"nip 0", []string{"a", "b", "c"}, func(s *Stack) error {
			_, err := s.Nip(0)
			return err
		}, []string{"a", "b"}, nil},
		{"nip 1", []string{"a", "b", "c"}, func(s *Stack) error {
			_, err := s.Nip(1)
			return err
		}, []string{"a", "c"}, nil},
		{"nip 2", []string{"a", "b", "c"}, func(s *Stack) error {
			_, err := s.Nip(2)
			return err
		}, []string{"b", "c"}, nil},
		{"insert", []string{"a", "b"}, func(s *Stack) error {
			return s.Insert(2, []byte("x"))
		}, []string{"x", "a", "b"}, nil},
		{"insert top", []string{"a", "b"}, func(s *Stack) error {
			return s.Insert(0, []byte("x"))
		}, []string{"a", "b", "x"}, nil},
		{"drop 2", []string{"a", "b", "c"}, func(s *Stack) error {
			return s.DropN(2)
		}, []string{"a"}, nil},
		{"drop underflow", []string{"a"}, func(s *Stack) error {
			return s.DropN(2)
		}, []string{"a"}, ErrUnderflow},
		{"dup 2", []string{"a", "b"}, func(s *Stack) error {
			return s.DupN(2)
		}, []string{"a", "b", "a", "b"}, nil},
		{"rot 1", []string{"a", "b", "c"}, func(s *Stack) error {
			return s.RotN(1)
		}, []string{"b", "c", "a"}, nil},
		{"rot 2", []string{"a", "b", "c", "d", "e", "f"}, func(s *Stack) error {
			return s.RotN(2)
		}, []string{"c", "d", "e", "f", "a", "b"}, nil},
		{"swap 1", []string{"a", "b"}, func(s *Stack) error {
			return s.SwapN(1)
		}, []string{"b", "a"}, nil},
		{"swap 2", []string{"a", "b", "c", "d"}, func(s *Stack) error {
			return s.SwapN(2)
		}, []string{"c", "d", "a", "b"}, nil},
		{"over 1", []string{"a", "b", "c"}, func(s *Stack) error {
			return s.OverN(1)
		}, []string{"a", "b", "c", "b"}, nil},
		{"over 2", []string{"a", "b", "c", "d"}, func(s *Stack) error {
			return s.OverN(2)
		}, []string{"a", "b", "c", "d", "a", "b"}, nil},
		{"over underflow", []string{"a", "b", "c"}, func(s *Stack) error {
			return s.OverN(2)
		}, []string{"a", "b", "c"}, ErrUnderflow},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := build(test.before...)
			err := test.op(s)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, test.after, dump(s))
		})
	}
}

func TestItemsIsCopy(t *testing.T) {
	s := build("abc")
	items := s.Items()
	items[0][0] = 'x'
	top, err := s.Top()
	require.NoError(t, err)
	require.Equal(t, "abc", string(top))
}
