// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import "github.com/cornelk/hashmap"

// subKind distinguishes which of the three subscription tables a channel
// name belongs in.
type subKind uint8

const (
	subChannel subKind = iota
	subPattern
	subShardChannel
)

// subscriptions holds the three subscription tables (channels, patterns,
// shard_channels), each keyed by channel/pattern/shard name. A lock-free
// map lets lookup-only traffic (metrics, admin introspection) run
// concurrently with the single dispatch goroutine's writes without a
// coarse mutex — unlike the FIFO sub-queues right next to it in queue.go,
// which stay plain slices, since nothing ever touches those outside the
// one dispatch path.
type subscriptions struct {
	channels      *hashmap.Map[string, *callback]
	patterns      *hashmap.Map[string, *callback]
	shardChannels *hashmap.Map[string, *callback]
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		channels:      hashmap.New[string, *callback](),
		patterns:      hashmap.New[string, *callback](),
		shardChannels: hashmap.New[string, *callback](),
	}
}

func (s *subscriptions) table(kind subKind) *hashmap.Map[string, *callback] {
	switch kind {
	case subPattern:
		return s.patterns
	case subShardChannel:
		return s.shardChannels
	default:
		return s.channels
	}
}

func (s *subscriptions) empty() bool {
	return s.channels.Len() == 0 && s.patterns.Len() == 0 && s.shardChannels.Len() == 0
}

// pubsubVerb classifies the first element of a reply against the pubsub
// grammar. ok is false for anything that is not one of these nine verbs,
// in which case the reply is not pubsub traffic at all.
type pubsubVerb uint8

const (
	verbMessage pubsubVerb = iota
	verbSubscribe
	verbUnsubscribe
	verbPMessage
	verbPSubscribe
	verbPUnsubscribe
	verbSMessage
	verbSSubscribe
	verbSUnsubscribe
)

func classifyPubsubVerb(s string) (pubsubVerb, bool) {
	switch s {
	case "message":
		return verbMessage, true
	case "subscribe":
		return verbSubscribe, true
	case "unsubscribe":
		return verbUnsubscribe, true
	case "pmessage":
		return verbPMessage, true
	case "psubscribe":
		return verbPSubscribe, true
	case "punsubscribe":
		return verbPUnsubscribe, true
	case "smessage":
		return verbSMessage, true
	case "ssubscribe":
		return verbSSubscribe, true
	case "sunsubscribe":
		return verbSUnsubscribe, true
	default:
		return 0, false
	}
}

func (v pubsubVerb) isMessage() bool {
	return v == verbMessage || v == verbPMessage || v == verbSMessage
}

func (v pubsubVerb) isSubscribeAck() bool {
	return v == verbSubscribe || v == verbPSubscribe || v == verbSSubscribe
}

func (v pubsubVerb) isUnsubscribeAck() bool {
	return v == verbUnsubscribe || v == verbPUnsubscribe || v == verbSUnsubscribe
}

func (v pubsubVerb) subKind() subKind {
	switch v {
	case verbPMessage, verbPSubscribe, verbPUnsubscribe:
		return subPattern
	case verbSMessage, verbSSubscribe, verbSUnsubscribe:
		return subShardChannel
	default:
		return subChannel
	}
}

// pubsubReply inspects reply against the pubsub grammar: a 3- or 4-element
// Array or Push whose first element is a Status or String naming one of
// the nine recognized verbs. ok is false for anything that does not
// match, in which case the caller should treat reply as an ordinary
// (non-pubsub) reply.
func pubsubReply(reply *Reply) (verb pubsubVerb, channel string, ok bool) {
	if reply == nil || (reply.Kind != KindArray && reply.Kind != KindPush) {
		return 0, "", false
	}
	n := len(reply.Elems)
	if n != 3 && n != 4 {
		return 0, "", false
	}
	head := reply.Elems[0]
	if head == nil || (head.Kind != KindStatus && head.Kind != KindString) {
		return 0, "", false
	}
	v, matched := classifyPubsubVerb(string(head.Str))
	if !matched {
		return 0, "", false
	}
	if len(reply.Elems) < 2 || reply.Elems[1] == nil {
		return 0, "", false
	}
	return v, string(reply.Elems[1].Str), true
}
