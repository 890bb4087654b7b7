package msglog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurgeKeepsMostRecent(t *testing.T) {
	l := New()
	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("msg%d", i))
		l.Purge(3)
		assert.LessOrEqual(t, l.Len(), 3)
	}

	assert.Equal(t, []string{"msg3", "msg4", "msg5"}, l.Entries())
}

func TestPurgeWithoutCapacity(t *testing.T) {
	for _, max := range []int{0, -1} {
		l := New()
		l.Append("a")
		l.Append("b")
		l.Purge(max)
		assert.Equal(t, []string{"a", "b"}, l.Entries(), "max=%d", max)
	}
}

func TestPurgeUnderCapacity(t *testing.T) {
	l := New()
	l.Append("a")
	l.Purge(3)
	assert.Equal(t, []string{"a"}, l.Entries())
}

func TestEntriesIsCopy(t *testing.T) {
	l := New()
	l.Append("a")
	got := l.Entries()
	got[0] = "changed"
	assert.Equal(t, []string{"a"}, l.Entries())

	l.Reset()
	assert.Equal(t, 0, l.Len())
}
