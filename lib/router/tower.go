// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import "github.com/bureau-foundation/canopy/lib/dispose"

// TalkChannel is the page channel that carries directives to the
// page-level context.
const TalkChannel = "talk"

// Tower is a context's handle on its page's talk channel.
type Tower struct {
	router *Router
	talk   *Channel
}

// NewTower returns the tower for router's talk channel.
func NewTower(router *Router) *Tower {
	return &Tower{router: router, talk: router.Channel(TalkChannel)}
}

// Send implements Sender over the talk channel.
func (t *Tower) Send(directive Directive) bool {
	return t.talk.Send(directive)
}

// Listen attaches a receiver to the talk channel.
func (t *Tower) Listen(f func(Directive)) *dispose.Handle {
	return t.talk.Listen(f)
}

// OnTalkInit runs f once the talk channel has its first receiver.
func (t *Tower) OnTalkInit(f func()) *dispose.Handle {
	return t.talk.OnInit(f)
}

// Release closes the talk channel. Idempotent.
func (t *Tower) Release() {
	if t == nil {
		return
	}
	t.talk.Close()
}

// Done is closed once the talk channel's dispatcher has exited.
func (t *Tower) Done() <-chan struct{} {
	return t.talk.Done()
}
