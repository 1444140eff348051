package realm

import (
	"sync"

	"github.com/chromedp/cdproto/page"
)

// PreloadScript is one script.addPreloadScript registration: a CDP
// Page.addScriptToEvaluateOnNewDocument identifier per top-level
// target it has been applied to, scoped to a set of contexts/
// userContexts (empty sets mean global).
type PreloadScript struct {
	ID                     string
	Source                 string
	Sandbox                string
	ContextIDs             []string
	UserContextIDs         []string
	cdpIDs                 map[string]page.ScriptIdentifier // targetSessionKey -> cdp id
}

// PreloadScriptStorage tracks registered preload scripts so
// script.removePreloadScript can undo every target it was applied to.
type PreloadScriptStorage struct {
	mu      sync.Mutex
	scripts map[string]*PreloadScript
}

// NewPreloadScriptStorage returns an empty registry.
func NewPreloadScriptStorage() *PreloadScriptStorage {
	return &PreloadScriptStorage{scripts: make(map[string]*PreloadScript)}
}

// Add registers a new preload script, minting its id via newID.
func (s *PreloadScriptStorage) Add(newID func() string, source, sandbox string, contextIDs, userContextIDs []string) *PreloadScript {
	p := &PreloadScript{
		ID:             newID(),
		Source:         source,
		Sandbox:        sandbox,
		ContextIDs:     contextIDs,
		UserContextIDs: userContextIDs,
		cdpIDs:         make(map[string]page.ScriptIdentifier),
	}
	s.mu.Lock()
	s.scripts[p.ID] = p
	s.mu.Unlock()
	return p
}

// Get returns the script by id, or nil.
func (s *PreloadScriptStorage) Get(id string) *PreloadScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scripts[id]
}

// RecordApplied remembers the CDP script id a preload script was given
// on a particular target, so Remove can clean it up there too.
func (p *PreloadScript) RecordApplied(targetKey string, cdpID page.ScriptIdentifier) {
	p.cdpIDs[targetKey] = cdpID
}

// Applied returns every target key / CDP script id pair recorded for
// this preload script.
func (p *PreloadScript) Applied() map[string]page.ScriptIdentifier {
	return p.cdpIDs
}

// Remove forgets a preload script; the caller is responsible for
// issuing Page.removeScriptToEvaluateOnNewDocument on every target it
// was applied to, using Applied().
func (s *PreloadScriptStorage) Remove(id string) *PreloadScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.scripts[id]
	delete(s.scripts, id)
	return p
}

// All returns every registered preload script, e.g. for applying to a
// freshly-attached target.
func (s *PreloadScriptStorage) All() []*PreloadScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PreloadScript, 0, len(s.scripts))
	for _, p := range s.scripts {
		out = append(out, p)
	}
	return out
}
