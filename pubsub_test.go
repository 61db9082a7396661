// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import "testing"

func TestClassifyPubsubVerb(t *testing.T) {
	cases := map[string]pubsubVerb{
		"message":      verbMessage,
		"subscribe":    verbSubscribe,
		"unsubscribe":  verbUnsubscribe,
		"pmessage":     verbPMessage,
		"psubscribe":   verbPSubscribe,
		"punsubscribe": verbPUnsubscribe,
		"smessage":     verbSMessage,
		"ssubscribe":   verbSSubscribe,
		"sunsubscribe": verbSUnsubscribe,
	}
	for s, want := range cases {
		got, ok := classifyPubsubVerb(s)
		if !ok || got != want {
			t.Fatalf("%q: got (%v,%v) want (%v,true)", s, got, ok, want)
		}
	}
	if _, ok := classifyPubsubVerb("get"); ok {
		t.Fatalf("want ok=false for non-pubsub verb")
	}
}

func TestPubsubReply_MessageGrammar(t *testing.T) {
	reply := mustParse(t, "*3\r\n$7\r\nmessage\r\n$3\r\nfoo\r\n$3\r\nhi!\r\n")
	verb, channel, ok := pubsubReply(reply)
	if !ok || verb != verbMessage || channel != "foo" {
		t.Fatalf("got verb=%v channel=%q ok=%v", verb, channel, ok)
	}
}

func TestPubsubReply_FourElementPMessage(t *testing.T) {
	reply := mustParse(t, "*4\r\n$8\r\npmessage\r\n$3\r\nfo*\r\n$3\r\nfoo\r\n$2\r\nhi\r\n")
	verb, channel, ok := pubsubReply(reply)
	if !ok || verb != verbPMessage || channel != "fo*" {
		t.Fatalf("got verb=%v channel=%q ok=%v", verb, channel, ok)
	}
}

func TestPubsubReply_RejectsOrdinaryArray(t *testing.T) {
	reply := mustParse(t, "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	if _, _, ok := pubsubReply(reply); ok {
		t.Fatalf("2-element array must not match pubsub grammar")
	}
}

func TestPubsubReply_RejectsNonArrayStatus(t *testing.T) {
	reply := mustParse(t, "+OK\r\n")
	if _, _, ok := pubsubReply(reply); ok {
		t.Fatalf("status reply must not match pubsub grammar")
	}
}

func TestSubscriptions_TableRouting(t *testing.T) {
	subs := newSubscriptions()
	cb := &callback{refCount: 1}
	subs.table(subPattern).Set("news.*", cb)
	if got, ok := subs.table(subPattern).Get("news.*"); !ok || got != cb {
		t.Fatalf("pattern table lookup failed")
	}
	if subs.empty() {
		t.Fatalf("want non-empty after insert")
	}
	subs.table(subPattern).Del("news.*")
	if !subs.empty() {
		t.Fatalf("want empty after delete")
	}
}
