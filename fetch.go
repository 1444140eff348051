package mapper

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
)

// fetchEnable issues Fetch.enable with the given patterns, the second
// half of fetchApply's disable-then-enable sequence (§4.3).
func fetchEnable(ctx context.Context, t *CdpTarget, patterns []FetchPattern, handleAuthRequests bool) error {
	fps := make([]*fetch.RequestPattern, 0, len(patterns))
	for _, p := range patterns {
		fp := &fetch.RequestPattern{
			URLPattern:   p.URLPattern,
			RequestStage: fetch.RequestStage(p.RequestStage),
		}
		if p.ResourceType != "" {
			fp.ResourceType = cdp.ResourceType(p.ResourceType)
		}
		fps = append(fps, fp)
	}
	return fetch.Enable().
		WithPatterns(fps).
		WithHandleAuthRequests(handleAuthRequests).
		Do(cdp.WithExecutor(ctx, t))
}

// fetchDisable issues Fetch.disable, dropping every intercept
// currently registered on the target.
func fetchDisable(ctx context.Context, t *CdpTarget) error {
	return fetch.Disable().Do(cdp.WithExecutor(ctx, t))
}
