// Package eventBusTypes defines the types used by the eventBus package.
package eventBusTypes

import (
	"context"
	"sync"

	"github.com/interlay/interbtc-indexer/pkg/storage"
)

// EventName identifies a type of internal event.
type EventName string

func (en *EventName) String() string {
	return string(*en)
}

var (
	// Event_BlockIndexed is emitted after a block's state has been committed.
	Event_BlockIndexed EventName = "block_indexed"
)

// Event is one message published to the bus.
type Event struct {
	Name EventName
	Data any
}

type ConsumerId string

// Consumer is a subscriber. Events are delivered on Channel; a full or nil
// channel drops the event for that consumer rather than blocking indexing.
type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// ConsumerList is a thread-safe collection of consumers.
type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.consumers
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

// BlockIndexedData is the payload of an Event_BlockIndexed event.
type BlockIndexedData struct {
	Block      *storage.Block
	Events     []*storage.Event
	Extrinsics []*storage.Extrinsic
	// StateRoot is the merkle root committed for the block.
	StateRoot *storage.StateRoot
	// CommittedState maps model name to the entities the model produced
	// while handling the block's events.
	CommittedState map[string][]interface{}
}
