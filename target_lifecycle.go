package mapper

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdpnetwork "github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/cdproto/target"
)

// AttachTarget creates a CdpTarget for a freshly-attached CDP session
// and runs the domain-enable sequence described in §4.3. The returned
// target's unblocked latch settles once the sequence completes (or
// fails with a non-"target closed" error).
func AttachTarget(ctx context.Context, client *CdpClient, targetID target.ID, sessionID target.SessionID, settings TargetSettings, wantsNetwork func() bool, opts ...TargetOption) *CdpTarget {
	t := newCdpTarget(client, targetID, sessionID, opts...)
	t.settings = settings
	go t.runEnableSequence(ctx, wantsNetwork)
	return t
}

// runEnableSequence fires the attach-time CDP calls concurrently, per
// §4.3 ("then (concurrently) send..."), and resolves t.unblocked once
// every step has settled.
func (t *CdpTarget) runEnableSequence(ctx context.Context, wantsNetwork func() bool) {
	steps := []func(context.Context) error{
		func(ctx context.Context) error { return runtime.Enable().Do(cdp.WithExecutor(ctx, t)) },
		func(ctx context.Context) error { return cdppage.Enable().Do(cdp.WithExecutor(ctx, t)) },
		func(ctx context.Context) error {
			return cdppage.SetLifecycleEventsEnabled(true).Do(cdp.WithExecutor(ctx, t))
		},
		func(ctx context.Context) error {
			return security.SetIgnoreCertificateErrors(t.settings.AcceptInsecureCerts).Do(cdp.WithExecutor(ctx, t))
		},
		func(ctx context.Context) error {
			if wantsNetwork == nil || !wantsNetwork() {
				return nil
			}
			return t.toggleNetworkIfNeeded(ctx, true)
		},
		func(ctx context.Context) error {
			return target.SetAutoAttach(true, true).WithFlatten(true).Do(cdp.WithExecutor(ctx, t))
		},
		func(ctx context.Context) error { return t.applySettings(ctx) },
	}

	var wg sync.WaitGroup
	errs := make([]error, len(steps))
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step func(context.Context) error) {
			defer wg.Done()
			errs[i] = step(ctx)
		}(i, step)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !isCdpCloseError(err) {
			t.unblocked.Reject(err)
			return
		}
	}

	if err := runtime.RunIfWaitingForDebugger().Do(cdp.WithExecutor(ctx, t)); err != nil && !isCdpCloseError(err) {
		t.unblocked.Reject(err)
		return
	}
	t.unblocked.Resolve(struct{}{})
}

// awaitUnblocked waits for the attach sequence to complete before a
// command proceeds against this target.
func (t *CdpTarget) awaitUnblocked(ctx context.Context) error {
	_, err := t.unblocked.Wait(ctx)
	return err
}

// toggleNetworkIfNeeded enables or disables the Network domain. It is
// idempotent: calling it with the domain already in the requested
// state is a no-op (§4.3).
func (t *CdpTarget) toggleNetworkIfNeeded(ctx context.Context, enabled bool) error {
	if t.networkEnabled == enabled {
		return nil
	}
	var err error
	if enabled {
		err = cdpnetwork.Enable().Do(cdp.WithExecutor(ctx, t))
	} else {
		err = cdpnetwork.Disable().Do(cdp.WithExecutor(ctx, t))
	}
	if err != nil {
		return err
	}
	t.networkEnabled = enabled
	return nil
}

// FetchPattern is a reduced mirror of cdproto/fetch.RequestPattern,
// the pattern shape enableFetchIfNeeded/fetchApply take; fetch.go's
// fetchEnable converts it to the CDP type.
type FetchPattern struct {
	URLPattern   string
	ResourceType string
	RequestStage string
}

// enableFetchIfNeeded turns on request interception. It requires the
// Network domain to already be enabled (§4.3).
func (t *CdpTarget) enableFetchIfNeeded(ctx context.Context, patterns []FetchPattern, handleAuthRequests bool) error {
	if !t.networkEnabled {
		return NewError(ErrorCodeUnsupportedOperation, "network domain must be enabled before Fetch interception")
	}
	return t.fetchApply(ctx, patterns, handleAuthRequests)
}

// fetchApply performs disable-then-enable, never in parallel, because
// Fetch.disable drops every intercept and only a subsequent
// Fetch.enable can restore the ones that should remain (§4.3).
func (t *CdpTarget) fetchApply(ctx context.Context, patterns []FetchPattern, handleAuthRequests bool) error {
	if t.fetchEnabled {
		if err := fetchDisable(ctx, t); err != nil && !isCdpCloseError(err) {
			return err
		}
		t.fetchEnabled = false
	}
	if len(patterns) == 0 {
		return nil
	}
	if err := fetchEnable(ctx, t, patterns, handleAuthRequests); err != nil {
		return err
	}
	t.fetchEnabled = true
	return nil
}

// applySettings pushes the target's current TargetSettings to CDP.
// Called once at attach and again whenever emulation.* or
// browsingContext.setViewport mutates t.settings (SPEC_FULL §4.3).
func (t *CdpTarget) applySettings(ctx context.Context) error {
	s := t.settings

	if s.Geolocation != nil {
		if err := emulation.SetGeolocationOverride().
			WithLatitude(s.Geolocation.Latitude).
			WithLongitude(s.Geolocation.Longitude).
			WithAccuracy(s.Geolocation.Accuracy).
			Do(cdp.WithExecutor(ctx, t)); err != nil {
			return err
		}
	}
	if s.Locale != "" {
		if err := emulation.SetLocaleOverride(s.Locale).Do(cdp.WithExecutor(ctx, t)); err != nil {
			return err
		}
	}
	if s.Timezone != "" {
		if err := emulation.SetTimezoneOverride(s.Timezone).Do(cdp.WithExecutor(ctx, t)); err != nil {
			return err
		}
	}
	if s.Viewport != nil {
		cmd := emulation.SetDeviceMetricsOverride(s.Viewport.Width, s.Viewport.Height, s.Viewport.DevicePixelRatio, s.Viewport.Mobile)
		if s.Orientation != nil {
			cmd = cmd.WithScreenOrientation(&emulation.ScreenOrientation{
				Type:  emulation.OrientationType(s.Orientation.Type),
				Angle: s.Orientation.Angle,
			})
		}
		if err := cmd.Do(cdp.WithExecutor(ctx, t)); err != nil {
			return err
		}
	}
	if s.UserAgent != "" {
		if err := cdpnetwork.SetUserAgentOverride(s.UserAgent).Do(cdp.WithExecutor(ctx, t)); err != nil {
			return err
		}
	}
	return nil
}

