package session

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Merdeus/dndinventory/internal/model"
)

func TestOutboxFIFO(t *testing.T) {
	o := newOutbox()
	require.NoError(t, o.Push(Message{Event: model.EventGoldUpdate, Data: []byte("1")}))
	require.NoError(t, o.Push(Message{Event: model.EventGoldUpdate, Data: []byte("2")}))

	<-o.Ready()
	msgs := o.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", string(msgs[0].Data))
	assert.Equal(t, "2", string(msgs[1].Data))
	assert.Equal(t, 0, o.Len())
}

func TestOutboxReadyCoalesces(t *testing.T) {
	o := newOutbox()
	for i := 0; i < 10; i++ {
		require.NoError(t, o.Push(Message{Event: model.EventNotification}))
	}
	<-o.Ready()
	select {
	case <-o.Ready():
		t.Fatal("ready should be signalled once for a burst")
	default:
	}
	assert.Len(t, o.Drain(), 10)
}

func TestOutboxCloseWakesConsumer(t *testing.T) {
	o := newOutbox()
	require.NoError(t, o.Push(Message{Event: model.EventNotification}))
	<-o.Ready()
	o.Close()
	o.Close()

	_, ok := <-o.Ready()
	assert.False(t, ok)
	assert.Len(t, o.Drain(), 1)
	assert.ErrorIs(t, o.Push(Message{}), ErrConnectionClosed)
}

func TestOutboxConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	o := newOutbox()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = o.Push(Message{Event: model.EventType(strconv.Itoa(p)), Data: []byte{byte(i)}})
			}
		}(p)
	}
	wg.Wait()

	msgs := o.Drain()
	require.Len(t, msgs, producers*perProducer)
	last := map[model.EventType]int{}
	for _, m := range msgs {
		prev, seen := last[m.Event]
		if seen {
			assert.Equal(t, prev+1, int(m.Data[0]))
		}
		last[m.Event] = int(m.Data[0])
	}
}
