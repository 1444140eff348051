package network

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	cdpnetwork "github.com/chromedp/cdproto/network"
)

// SameSite is BiDi's network.SameSite enum.
type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// Cookie is the BiDi wire shape for network.Cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Size     int64
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
	Expiry   int64
}

// fromCDPSameSite maps CDP's SameSite onto BiDi's, with undefined
// mapping to None per §8's round-trip law.
func fromCDPSameSite(s cdpnetwork.CookieSameSite) SameSite {
	switch s {
	case cdpnetwork.CookieSameSiteStrict:
		return SameSiteStrict
	case cdpnetwork.CookieSameSiteLax:
		return SameSiteLax
	default:
		return SameSiteNone
	}
}

// toCDPSameSite is the reverse mapping, with undefined defaulting to
// Lax per §8's round-trip law ("undefined ⇒ None on CDP→BiDi, Lax on
// the reverse default").
func toCDPSameSite(s SameSite) cdpnetwork.CookieSameSite {
	switch s {
	case SameSiteStrict:
		return cdpnetwork.CookieSameSiteStrict
	case SameSiteNone:
		return cdpnetwork.CookieSameSiteNone
	default:
		return cdpnetwork.CookieSameSiteLax
	}
}

// FromCDPCookie converts a CDP cookie into BiDi's wire shape.
func FromCDPCookie(c *cdpnetwork.Cookie) Cookie {
	return Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Size:     c.Size,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: fromCDPSameSite(c.SameSite),
		Expiry:   int64(c.Expires),
	}
}

// GetCookies issues Network.getCookies, optionally scoped to urls.
func GetCookies(ctx context.Context, sess CdpSession, urls []string) ([]Cookie, error) {
	cmd := cdpnetwork.GetCookies()
	if len(urls) > 0 {
		cmd = cmd.WithUrls(urls)
	}
	cookies, err := cmd.Do(cdp.WithExecutor(ctx, sess))
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, FromCDPCookie(c))
	}
	return out, nil
}

// SetCookie issues Network.setCookie, translating BiDi's SameSite back
// onto CDP's enum.
func SetCookie(ctx context.Context, sess CdpSession, c Cookie) error {
	cmd := cdpnetwork.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithHTTPOnly(c.HTTPOnly).
		WithSecure(c.Secure).
		WithSameSite(toCDPSameSite(c.SameSite))
	if c.Expiry != 0 {
		cmd = cmd.WithExpires(cdpnetwork.TimeSinceEpoch(c.Expiry))
	}
	_, err := cmd.Do(cdp.WithExecutor(ctx, sess))
	return err
}

// DeleteCookies issues Network.deleteCookies for every cookie matching
// name (and optionally domain/path).
func DeleteCookies(ctx context.Context, sess CdpSession, name, domain, path string) error {
	cmd := cdpnetwork.DeleteCookies(name)
	if domain != "" {
		cmd = cmd.WithDomain(domain)
	}
	if path != "" {
		cmd = cmd.WithPath(path)
	}
	return cmd.Do(cdp.WithExecutor(ctx, sess))
}
