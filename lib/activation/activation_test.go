// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"context"
	"sync"
	"testing"

	"github.com/bureau-foundation/canopy/lib/router"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/urlcond"
)

type staticFetcher struct {
	view   settings.View
	calls  int
	fields settings.FieldSet
	ctx    context.Context
}

func (f *staticFetcher) FetchView(ctx context.Context, fields settings.FieldSet, target settings.ContextID) settings.View {
	f.calls++
	f.fields = fields
	f.ctx = ctx
	return f.view.Restrict(fields)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []router.Directive
}

func (s *recordingSender) Send(directive router.Directive) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, directive)
	return true
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func excludeExample() *urlcond.Rule {
	return &urlcond.Rule{
		Block: true,
		Parts: []urlcond.Part{{Mode: urlcond.ModeContains, Value: "example.com"}},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		url  string
		view settings.View
		want bool
	}{
		{
			name: "forced site with flag off",
			url:  "https://web.whatsapp.com/chat",
			view: settings.View{settings.FieldGhostMode: false},
			want: true,
		},
		{
			name: "flag on, no condition",
			url:  "https://example.com",
			view: settings.View{settings.FieldGhostMode: true},
			want: true,
		},
		{
			name: "flag off, ordinary site",
			url:  "https://example.com",
			view: settings.View{settings.FieldGhostMode: false},
			want: false,
		},
		{
			name: "flag on, condition excludes site",
			url:  "https://example.com/watch",
			view: settings.View{settings.FieldGhostMode: true, settings.FieldGhostModeURLCondition: excludeExample()},
			want: true,
		},
		{
			name: "flag on, condition admits site",
			url:  "https://video.test/watch",
			view: settings.View{settings.FieldGhostMode: true, settings.FieldGhostModeURLCondition: excludeExample()},
			want: true,
		},
		{
			name: "flag on, condition has only disabled parts",
			url:  "https://example.com",
			view: settings.View{
				settings.FieldGhostMode: true,
				settings.FieldGhostModeURLCondition: &urlcond.Rule{Parts: []urlcond.Part{
					{Mode: urlcond.ModeExact, Value: "https://other.test", Disabled: true},
				}},
			},
			want: true,
		},
		{
			name: "forced site inside a path",
			url:  "https://v.qq.com/x/cover/abc.html",
			view: settings.View{},
			want: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Decide(test.url, test.view); got != test.want {
				t.Errorf("Decide(%q) = %v, want %v", test.url, got, test.want)
			}
		})
	}
}

func TestMinimal(t *testing.T) {
	tests := []struct {
		name string
		url  string
		view settings.View
		want bool
	}{
		{"no condition", "https://example.com", settings.View{}, true},
		{"condition excludes site", "https://example.com/watch", settings.View{settings.FieldGhostModeURLCondition: excludeExample()}, false},
		{"condition admits site", "https://video.test/watch", settings.View{settings.FieldGhostModeURLCondition: excludeExample()}, true},
		{
			"only disabled parts",
			"https://example.com",
			settings.View{settings.FieldGhostModeURLCondition: &urlcond.Rule{Parts: []urlcond.Part{
				{Mode: urlcond.ModeExact, Value: "https://other.test", Disabled: true},
			}}},
			true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Minimal(test.url, test.view); got != test.want {
				t.Errorf("Minimal(%q) = %v, want %v", test.url, got, test.want)
			}
		})
	}
}

// The forced-sites list wins over a user condition that excludes the
// site. This is existing product behavior, kept as observed: a user
// cannot opt a forced site out of ghost mode.
func TestForcedSiteOverridesUserExclusion(t *testing.T) {
	view := settings.View{
		settings.FieldGhostMode: true,
		settings.FieldGhostModeURLCondition: &urlcond.Rule{
			Block: true,
			Parts: []urlcond.Part{{Mode: urlcond.ModeContains, Value: "wetv.vip"}},
		},
	}
	if !Decide("https://wetv.vip/play/1", view) {
		t.Fatal("forced site was excluded by the user condition")
	}
}

func TestRunSendsAtMostOnce(t *testing.T) {
	fetcher := &staticFetcher{view: settings.View{settings.FieldGhostMode: true}}
	sender := &recordingSender{}
	decider := NewDecider(Config{Fetcher: fetcher, Sender: sender, URL: "https://example.com"})

	if !decider.Run(context.Background()) {
		t.Fatal("first Run did not send")
	}
	if decider.Run(context.Background()) {
		t.Fatal("second Run sent again")
	}
	if sender.count() != 1 || fetcher.calls != 1 {
		t.Fatalf("sent %d directives after %d fetches, want 1 and 1", sender.count(), fetcher.calls)
	}
	if sender.sent[0].Type != router.TypeActivateGhost {
		t.Fatalf("directive = %+v, want ACTIVATE_GHOST", sender.sent[0])
	}
}

func TestRunReadsOnlyTheGlobalFlag(t *testing.T) {
	fetcher := &staticFetcher{view: settings.View{
		settings.FieldGhostMode:             true,
		settings.FieldGhostModeURLCondition: excludeExample(),
	}}
	sender := &recordingSender{}
	decider := NewDecider(Config{Fetcher: fetcher, Sender: sender, URL: "https://example.com/watch"})

	if !decider.Run(context.Background()) {
		t.Fatal("flag on did not activate a site the URL condition excludes")
	}
	if got := fetcher.fields.Strings(); len(got) != 1 || got[0] != string(settings.FieldGhostMode) {
		t.Fatalf("fetched fields = %v, want [ghostMode]", got)
	}
}

func TestRunCancelsFetchContext(t *testing.T) {
	fetcher := &staticFetcher{view: settings.View{}}
	decider := NewDecider(Config{Fetcher: fetcher, Sender: &recordingSender{}, URL: "https://example.com"})

	decider.Run(context.Background())
	if fetcher.ctx == nil || fetcher.ctx.Err() == nil {
		t.Fatal("fetch context still live after Run returned")
	}
	decider.Release()
}

func TestRunNegativeDecisionSendsNothing(t *testing.T) {
	sender := &recordingSender{}
	decider := NewDecider(Config{
		Fetcher: &staticFetcher{view: settings.View{}},
		Sender:  sender,
		URL:     "https://example.com",
	})
	if decider.Run(context.Background()) {
		t.Fatal("Run reported a send")
	}
	if sender.count() != 0 {
		t.Fatalf("sent %d directives, want 0", sender.count())
	}
}

func TestRunAfterReleaseDoesNothing(t *testing.T) {
	fetcher := &staticFetcher{view: settings.View{settings.FieldGhostMode: true}}
	sender := &recordingSender{}
	decider := NewDecider(Config{Fetcher: fetcher, Sender: sender, URL: "https://web.whatsapp.com"})

	decider.Release()
	decider.Release()
	if decider.Run(context.Background()) || fetcher.calls != 0 || sender.count() != 0 {
		t.Fatal("released decider still fetched or sent")
	}

	var nilDecider *Decider
	nilDecider.Release()
}

func TestRunThroughRouter(t *testing.T) {
	pageRouter := router.New(nil)
	defer pageRouter.Release()
	tower := router.NewTower(pageRouter)

	received := make(chan router.Directive, 1)
	decider := NewDecider(Config{
		Fetcher: &staticFetcher{view: settings.View{}},
		Sender:  tower,
		URL:     "https://web.whatsapp.com/",
	})
	tower.OnTalkInit(func() { decider.Run(context.Background()) })
	tower.Listen(func(directive router.Directive) { received <- directive })

	if got := <-received; got.Type != router.TypeActivateGhost {
		t.Fatalf("directive = %+v", got)
	}
}
