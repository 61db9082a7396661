// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import (
	"strings"

	"github.com/cornelk/hashmap"
)

// pendingReplies sentinels for commands whose reply-counting is not a
// simple "expect exactly N replies". Ordinary commands use a positive
// count (usually 1); these three never reach zero through plain
// decrementing — each is retired by a specific trigger reply instead.
const (
	pendingUnsubscribeAll = -1
	pendingMonitor        = -2
	pendingReset          = -3
)

// callbackFn is a user reply handler. A nil reply (only ever delivered
// during teardown/disconnect/reset) means "this request will never get a
// real answer".
type callbackFn func(reply *Reply)

// callback is a request's reply handler: a user function, a reference
// count (≥1 while enqueued anywhere; incremented once more if retained as
// the monitor callback or installed into a subscription table), and a
// pendingReplies counter that is either a positive expected-reply count
// or one of the sentinels above.
type callback struct {
	fn             callbackFn
	refCount       int
	pendingReplies int
	// pendingSubUnsub marks a callback created for a subscribe- or
	// unsubscribe-family command, so updateSubscribed can tell whether
	// any such command is still in flight.
	pendingSubUnsub bool
}

func (cb *callback) incr() { cb.refCount++ }

// decrRef drops one reference; nothing else happens on reaching zero —
// unlike a finalizer-bearing resource, a callback has no cleanup beyond
// becoming eligible for garbage collection once every slot referencing it
// (FIFO entry, subscription table entry, monitor slot) has let go.
func (cb *callback) decrRef() {
	cb.refCount--
}

// request is one queued command: its already-formatted wire bytes and
// the callback awaiting its reply (or replies).
type request struct {
	buf []byte
	cb  *callback
}

// sendKind records which classification rule applied to a submitted
// command, so submit can both seed pendingReplies correctly and flag the
// callback for updateSubscribed.
type sendKind uint8

const (
	sendDefault sendKind = iota
	sendSubscribe
	sendUnsubscribe
	sendMonitor
	sendReset
)

// classifySend inspects a formatted command's argv (case-insensitive on
// the command name) and returns the pendingReplies seed and sendKind.
// Unsubscribe-family with no explicit channels gets the
// pendingUnsubscribeAll sentinel, MONITOR gets pendingMonitor and RESET
// gets pendingReset; subscribe-family and unsubscribe-family with explicit
// channels get a positive count; anything unrecognized defaults to the
// ordinary "expect exactly 1 reply" rule.
func classifySend(argv [][]byte) (pendingReplies int, kind sendKind) {
	if len(argv) == 0 {
		return 1, sendDefault
	}
	name := strings.ToLower(string(argv[0]))
	nArgs := len(argv) - 1
	switch name {
	case "subscribe", "psubscribe", "ssubscribe":
		if nArgs < 1 {
			nArgs = 1
		}
		return nArgs, sendSubscribe
	case "unsubscribe", "punsubscribe", "sunsubscribe":
		if nArgs == 0 {
			return pendingUnsubscribeAll, sendUnsubscribe
		}
		return nArgs, sendUnsubscribe
	case "monitor":
		return pendingMonitor, sendMonitor
	case "reset":
		return pendingReset, sendReset
	default:
		return 1, sendDefault
	}
}

// queue is the request/reply pipeline: the three FIFO sub-queues, the
// three subscription tables, and monitor/push callback slots, plus the
// reply-routing algorithm that ties them together. It is driven
// exclusively by Async from its single dispatch path; nothing
// here is safe for concurrent use without the embedder's own mutex.
type queue struct {
	toWrite   []*request
	waitWrite []*request
	waitRead  []*callback

	subs *subscriptions

	monitorCB *callback
	pushCB    PushHandler

	subscribed bool
	monitoring bool
	sawPush    bool

	factories         *Factories
	noAutoFreeReplies bool
	noPushAutoFree    bool
}

func newQueue(o *Options, factories *Factories) *queue {
	return &queue{
		subs:              newSubscriptions(),
		pushCB:            o.AsyncPushCallback,
		factories:         factories,
		noAutoFreeReplies: o.NoAutoFreeReplies,
		noPushAutoFree:    o.NoPushAutoFree,
	}
}

// submit formats argv, classifies it, and enqueues it onto to_write.
func (q *queue) submit(argv [][]byte, fn callbackFn) *callback {
	pending, kind := classifySend(argv)
	cb := &callback{fn: fn, refCount: 1, pendingReplies: pending}
	if kind == sendSubscribe || kind == sendUnsubscribe {
		cb.pendingSubUnsub = true
	}
	if kind == sendSubscribe {
		q.subscribed = true
	}
	q.toWrite = append(q.toWrite, &request{buf: BuildCommand(argv), cb: cb})
	return cb
}

// nextWrite returns the request currently being written — the head of
// wait_write if a partial write is already in flight, otherwise the head
// of to_write, moved into wait_write. It returns nil when there is
// nothing left to write.
func (q *queue) nextWrite() *request {
	if len(q.waitWrite) > 0 {
		return q.waitWrite[0]
	}
	if len(q.toWrite) == 0 {
		return nil
	}
	r := q.toWrite[0]
	q.toWrite = q.toWrite[1:]
	q.waitWrite = append(q.waitWrite, r)
	return r
}

// completeWrite moves the head of wait_write to the tail of wait_read
// once its bytes are fully on the wire.
func (q *queue) completeWrite() {
	r := q.waitWrite[0]
	q.waitWrite = q.waitWrite[1:]
	q.waitRead = append(q.waitRead, r.cb)
}

func (q *queue) callUser(cb *callback, reply *Reply) {
	if cb.fn != nil {
		cb.fn(reply)
	}
	if !q.noAutoFreeReplies {
		reply.Free(q.factories)
	}
}

func (q *queue) freeReply(reply *Reply) {
	if !q.noAutoFreeReplies {
		reply.Free(q.factories)
	}
}

func nilReply() *Reply { return &Reply{Kind: KindNil} }

func isResetReply(reply *Reply) bool {
	return reply.Kind == KindStatus && string(reply.Str) == "RESET"
}

func isOKReply(reply *Reply) bool {
	return reply.Kind == KindStatus && string(reply.Str) == "OK"
}

func isMonitorStreamReply(reply *Reply) bool {
	return reply.Kind == KindStatus && len(reply.Str) > 0 && reply.Str[0] >= '0' && reply.Str[0] <= '9'
}

func tailIntegerElem(reply *Reply) int64 {
	if reply == nil || len(reply.Elems) == 0 {
		return -1
	}
	last := reply.Elems[len(reply.Elems)-1]
	if last == nil || last.Kind != KindInteger {
		return -1
	}
	return last.Integer
}

// route is the reply-routing algorithm, run once per reply drained from
// the Reader: pubsub traffic dispatches by channel/pattern lookup without
// touching the FIFO, push replies go to the push callback, monitor-stream
// lines go to the monitor slot, and everything else advances the FIFO.
func (q *queue) route(reply *Reply) {
	if reply.Kind == KindPush {
		q.sawPush = true
	}
	if q.subscribed {
		if verb, channel, ok := pubsubReply(reply); ok {
			switch {
			case verb.isMessage():
				q.routeMessage(verb, channel, reply)
				return
			case verb.isSubscribeAck():
				q.routeSubscribeAck(verb, channel, reply)
				return
			case verb.isUnsubscribeAck():
				q.routeUnsubscribeAck(verb, channel, reply)
				return
			}
		}
	}

	if reply.Kind == KindPush {
		if q.pushCB != nil {
			q.pushCB(reply)
		} else if !q.noPushAutoFree {
			reply.Free(q.factories)
		}
		return
	}

	if q.monitoring && isMonitorStreamReply(reply) {
		if q.monitorCB != nil {
			q.callUser(q.monitorCB, reply)
		} else {
			q.freeReply(reply)
		}
		return
	}

	q.routeDefault(reply)
}

// routeMessage dispatches pubsub message/pmessage/smessage traffic by
// channel lookup; the FIFO is never touched.
func (q *queue) routeMessage(verb pubsubVerb, channel string, reply *Reply) {
	table := q.subs.table(verb.subKind())
	if cb, found := table.Get(channel); found {
		q.callUser(cb, reply)
		return
	}
	q.freeReply(reply)
}

// routeSubscribeAck handles a subscribe/psubscribe/ssubscribe ack: install
// the callback into the matching table, deliver the ack, and decrement the
// command's pending count.
func (q *queue) routeSubscribeAck(verb pubsubVerb, channel string, reply *Reply) {
	if len(q.waitRead) == 0 {
		q.freeReply(reply)
		return
	}
	head := q.waitRead[0]
	table := q.subs.table(verb.subKind())
	if old, found := table.Get(channel); found && old != head {
		old.decrRef()
	}
	table.Set(channel, head)
	head.incr()

	q.callUser(head, reply)
	head.pendingReplies--
	if head.pendingReplies == 0 {
		q.waitRead = q.waitRead[1:]
		head.decrRef()
	}
	q.updateSubscribed()
}

// routeUnsubscribeAck handles an unsubscribe/punsubscribe/sunsubscribe
// ack: remove the callback from the matching table and deliver the ack,
// then retire the command once its trailing subscription count reaches 0
// (for a bare unsubscribe-all) or its explicit channel count is exhausted.
func (q *queue) routeUnsubscribeAck(verb pubsubVerb, channel string, reply *Reply) {
	tailCount := tailIntegerElem(reply)
	table := q.subs.table(verb.subKind())

	if cb, found := table.Get(channel); found {
		table.Del(channel)
		q.callUser(cb, reply)
		cb.decrRef()
	} else {
		q.freeReply(reply)
	}

	if len(q.waitRead) == 0 {
		q.updateSubscribed()
		return
	}
	head := q.waitRead[0]
	switch {
	case head.pendingReplies == pendingUnsubscribeAll:
		if tailCount == 0 {
			q.waitRead = q.waitRead[1:]
			head.decrRef()
		}
	case head.pendingReplies > 0:
		head.pendingReplies--
		if head.pendingReplies == 0 {
			q.waitRead = q.waitRead[1:]
			head.decrRef()
		}
	}
	q.updateSubscribed()
}

// routeDefault is ordinary FIFO dispatch, plus the Monitor/Reset sentinel
// triggers. Once a Monitor ack or a +RESET arrives, that callback leaves
// wait_read for good — ongoing monitor-stream replies are driven through
// monitorCB instead, never by sitting at the FIFO head, so they never
// block real commands that pipeline behind a MONITOR/RESET.
func (q *queue) routeDefault(reply *Reply) {
	if len(q.waitRead) == 0 {
		q.freeReply(reply)
		return
	}
	head := q.waitRead[0]
	q.waitRead = q.waitRead[1:]

	switch head.pendingReplies {
	case pendingReset:
		if isResetReply(reply) {
			q.handleReset()
		}
		q.callUser(head, reply)
		head.decrRef()
		return
	case pendingMonitor:
		if isOKReply(reply) {
			q.monitoring = true
			q.monitorCB = head
			head.incr()
		}
		q.callUser(head, reply)
		head.decrRef()
		return
	}

	q.callUser(head, reply)
	head.pendingReplies--
	if head.pendingReplies != 0 {
		q.waitRead = append([]*callback{head}, q.waitRead...)
	} else {
		head.decrRef()
	}
	if head.pendingSubUnsub {
		q.updateSubscribed()
	}
}

// handleReset clears monitoring and every subscription, invoking each
// retained callback's finalizer with a Nil reply.
func (q *queue) handleReset() {
	q.monitoring = false
	if q.monitorCB != nil {
		q.callUser(q.monitorCB, nilReply())
		q.monitorCB.decrRef()
		q.monitorCB = nil
	}
	q.drainTable(q.subs.channels)
	q.drainTable(q.subs.patterns)
	q.drainTable(q.subs.shardChannels)
	q.updateSubscribed()
}

func (q *queue) drainTable(t *hashmap.Map[string, *callback]) {
	t.Range(func(key string, cb *callback) bool {
		q.callUser(cb, nilReply())
		t.Del(key)
		cb.decrRef()
		return true
	})
}

// updateSubscribed clears the subscribed flag exactly when every
// subscription table is empty and no subscribe/unsubscribe command is
// still anywhere in the FIFO.
func (q *queue) updateSubscribed() {
	if !q.subs.empty() {
		return
	}
	for _, r := range q.toWrite {
		if r.cb.pendingSubUnsub {
			return
		}
	}
	for _, r := range q.waitWrite {
		if r.cb.pendingSubUnsub {
			return
		}
	}
	for _, cb := range q.waitRead {
		if cb.pendingSubUnsub {
			return
		}
	}
	q.subscribed = false
}

// drainAll invokes every still-pending callback (FIFO, subscription
// tables, monitor slot) with a Nil reply, for disconnect/teardown.
func (q *queue) drainAll() {
	for _, r := range q.toWrite {
		q.callUser(r.cb, nilReply())
		r.cb.decrRef()
	}
	q.toWrite = nil
	for _, r := range q.waitWrite {
		q.callUser(r.cb, nilReply())
		r.cb.decrRef()
	}
	q.waitWrite = nil
	for _, cb := range q.waitRead {
		q.callUser(cb, nilReply())
		cb.decrRef()
	}
	q.waitRead = nil
	if q.monitorCB != nil {
		q.callUser(q.monitorCB, nilReply())
		q.monitorCB.decrRef()
		q.monitorCB = nil
	}
	q.drainTable(q.subs.channels)
	q.drainTable(q.subs.patterns)
	q.drainTable(q.subs.shardChannels)
	q.subscribed = false
	q.monitoring = false
}
