package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AddKeepsOrder(t *testing.T) {
	tr := New(10)
	u := tr.Add(RoleUser, "Hello")
	b := tr.Add(RoleBot, "Hi there")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, u, msgs[0])
	assert.Equal(t, b, msgs[1])
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.NotEqual(t, u.ID, b.ID)
}

func TestTranscript_DropsOldestAtCapacity(t *testing.T) {
	tr := New(2)
	tr.Add(RoleUser, "one")
	tr.Add(RoleBot, "two")
	tr.Add(RoleUser, "three")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := New(5)
	tr.Add(RoleUser, "one")

	msgs := tr.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "one", tr.Messages()[0].Content)
}

func TestTranscript_Reset(t *testing.T) {
	tr := New(0)
	tr.Add(RoleUser, "one")
	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Messages())
}

func TestTranscript_ConcurrentAdd(t *testing.T) {
	tr := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.Add(RoleUser, "x")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}
