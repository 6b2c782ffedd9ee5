package stack

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnderflow 栈中元素不足
	ErrUnderflow = errors.New("stack underflow")
	// ErrInvalidIndex 索引超出栈深度
	ErrInvalidIndex = errors.New("invalid stack index")
)

// Stack 字节串栈。栈中的元素可能被共享，修改前必须先拷贝
type Stack struct {
	l [][]byte
}

func New() *Stack {
	return &Stack{l: make([][]byte, 0)}
}

// Push [... x1] -> [... x1 v]
func (s *Stack) Push(v []byte) {
	s.l = append(s.l, v)
}

// Pop [... x1 x2] -> [... x1]
func (s *Stack) Pop() ([]byte, error) {
	if s.Empty() {
		return nil, ErrUnderflow
	}
	v := s.l[len(s.l)-1]
	s.l = s.l[:len(s.l)-1]
	return v, nil
}

// Top 栈顶元素
func (s *Stack) Top() ([]byte, error) {
	return s.Peek(0)
}

// Peek 返回从栈顶数起第 idx 个元素（栈顶为0），不出栈
func (s *Stack) Peek(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(s.l) {
		return nil, errors.Wrapf(ErrInvalidIndex, "index %d for stack size %d", idx, len(s.l))
	}
	return s.l[len(s.l)-idx-1], nil
}

// Nip 移除并返回从栈顶数起第 idx 个元素
//
// Nip(0): [... x1 x2 x3] -> [... x1 x2]
// Nip(1): [... x1 x2 x3] -> [... x1 x3]
// Nip(2): [... x1 x2 x3] -> [... x2 x3]
func (s *Stack) Nip(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(s.l) {
		return nil, errors.Wrapf(ErrInvalidIndex, "index %d for stack size %d", idx, len(s.l))
	}
	pos := len(s.l) - idx - 1
	v := s.l[pos]
	copy(s.l[pos:], s.l[pos+1:])
	s.l[len(s.l)-1] = nil
	s.l = s.l[:len(s.l)-1]
	return v, nil
}

// Insert 在从栈顶数起第 idx 个位置插入 v，Insert(0, v) 等同于 Push(v)
//
// Insert(2, v): [... x1 x2] -> [... v x1 x2]
func (s *Stack) Insert(idx int, v []byte) error {
	if idx < 0 || idx > len(s.l) {
		return errors.Wrapf(ErrInvalidIndex, "index %d for stack size %d", idx, len(s.l))
	}
	pos := len(s.l) - idx
	s.l = append(s.l, nil)
	copy(s.l[pos+1:], s.l[pos:])
	s.l[pos] = v
	return nil
}

// DropN [... x1 x2] -> [... x1] (n=1)
func (s *Stack) DropN(n int) error {
	if !s.Has(n) {
		return ErrUnderflow
	}
	for i := len(s.l) - n; i < len(s.l); i++ {
		s.l[i] = nil
	}
	s.l = s.l[:len(s.l)-n]
	return nil
}

// DupN 复制栈顶 n 个元素
//
// DupN(1): [... x1 x2] -> [... x1 x2 x2]
// DupN(2): [... x1 x2] -> [... x1 x2 x1 x2]
func (s *Stack) DupN(n int) error {
	if !s.Has(n) {
		return ErrUnderflow
	}
	s.l = append(s.l, s.l[len(s.l)-n:]...)
	return nil
}

// RotN 将栈顶 3n 个元素中最底下的 n 个移到栈顶
//
// RotN(1): [... x1 x2 x3] -> [... x2 x3 x1]
// RotN(2): [... x1 x2 x3 x4 x5 x6] -> [... x3 x4 x5 x6 x1 x2]
func (s *Stack) RotN(n int) error {
	if !s.Has(3 * n) {
		return ErrUnderflow
	}
	entry := 3*n - 1
	for i := 0; i < n; i++ {
		v, err := s.Nip(entry)
		if err != nil {
			return err
		}
		s.Push(v)
	}
	return nil
}

// SwapN 交换栈顶的两组 n 个元素
//
// SwapN(1): [... x1 x2] -> [... x2 x1]
// SwapN(2): [... x1 x2 x3 x4] -> [... x3 x4 x1 x2]
func (s *Stack) SwapN(n int) error {
	if !s.Has(2 * n) {
		return ErrUnderflow
	}
	entry := 2*n - 1
	for i := 0; i < n; i++ {
		v, err := s.Nip(entry)
		if err != nil {
			return err
		}
		s.Push(v)
	}
	return nil
}

// OverN 将栈顶 n 个元素之下的 n 个元素复制到栈顶
//
// OverN(1): [... x1 x2 x3] -> [... x1 x2 x3 x2]
// OverN(2): [... x1 x2 x3 x4] -> [... x1 x2 x3 x4 x1 x2]
func (s *Stack) OverN(n int) error {
	if !s.Has(2 * n) {
		return ErrUnderflow
	}
	entry := 2*n - 1
	for i := 0; i < n; i++ {
		v, err := s.Peek(entry)
		if err != nil {
			return err
		}
		s.Push(v)
	}
	return nil
}

func (s *Stack) Empty() bool {
	return s.Len() == 0
}

func (s *Stack) Len() int {
	return len(s.l)
}

func (s *Stack) Has(n int) bool {
	return n >= 0 && len(s.l) >= n
}

// Items 从栈底到栈顶的元素拷贝
func (s *Stack) Items() [][]byte {
	items := make([][]byte, len(s.l))
	for i, v := range s.l {
		items[i] = append([]byte(nil), v...)
	}
	return items
}

// Clear 清空栈
func (s *Stack) Clear() {
	for i := range s.l {
		s.l[i] = nil
	}
	s.l = s.l[:0]
}

func (s *Stack) String() string {
	var b strings.Builder
	for _, v := range s.l {
		if len(v) == 0 {
			b.WriteString("00000000  <empty>\n")
			continue
		}
		b.WriteString(hex.Dump(v))
	}
	return b.String()
}
