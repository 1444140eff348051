package mapper

import (
	"context"
	"encoding/json"

	"github.com/webbidi/mapper/network"
)

type partitionWire struct {
	Type    string `json:"type"`
	Context string `json:"context"`
}

// resolvePartitionSession implements storage's partition descriptor
// union for the subset this mediator supports: a context-scoped
// partition resolves to that context's CdpSession. storageKey
// partitions (sourceOrigin/userContext without a context) aren't
// addressable through a single CDP session and are rejected.
func (s *Session) resolvePartitionSession(p partitionWire) (network.CdpSession, string, error) {
	if p.Context == "" {
		return nil, "", NewError(ErrorCodeUnsupportedOperation, "storage commands require a context-scoped partition")
	}
	sess, err := s.requireSession(p.Context)
	if err != nil {
		return nil, "", err
	}
	return sess, p.Context, nil
}

type getCookiesParams struct {
	Filter    *struct {
		Name string `json:"name"`
	} `json:"filter"`
	Partition partitionWire `json:"partition"`
}

// cmdStorageGetCookies implements storage.getCookies.
func (s *Session) cmdStorageGetCookies(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p getCookiesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, _, err := s.resolvePartitionSession(p.Partition)
	if err != nil {
		return nil, err
	}
	cookies, err := network.GetCookies(ctx, sess, nil)
	if err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	if p.Filter != nil && p.Filter.Name != "" {
		filtered := cookies[:0]
		for _, c := range cookies {
			if c.Name == p.Filter.Name {
				filtered = append(filtered, c)
			}
		}
		cookies = filtered
	}
	return map[string]interface{}{"cookies": cookies}, nil
}

type cookieWire struct {
	Name     string `json:"name"`
	Value    struct {
		Value string `json:"value"`
	} `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"sameSite"`
	Expiry   int64  `json:"expiry"`
}

type setCookieParams struct {
	Cookie    cookieWire    `json:"cookie"`
	Partition partitionWire `json:"partition"`
}

// cmdStorageSetCookie implements storage.setCookie.
func (s *Session) cmdStorageSetCookie(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setCookieParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, _, err := s.resolvePartitionSession(p.Partition)
	if err != nil {
		return nil, err
	}
	c := network.Cookie{
		Name: p.Cookie.Name, Value: p.Cookie.Value.Value, Domain: p.Cookie.Domain, Path: p.Cookie.Path,
		HTTPOnly: p.Cookie.HTTPOnly, Secure: p.Cookie.Secure, SameSite: network.SameSite(p.Cookie.SameSite),
		Expiry: p.Cookie.Expiry,
	}
	if err := network.SetCookie(ctx, sess, c); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}

type deleteCookiesParams struct {
	Filter struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
		Path   string `json:"path"`
	} `json:"filter"`
	Partition partitionWire `json:"partition"`
}

// cmdStorageDeleteCookies implements storage.deleteCookies.
func (s *Session) cmdStorageDeleteCookies(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p deleteCookiesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	sess, _, err := s.resolvePartitionSession(p.Partition)
	if err != nil {
		return nil, err
	}
	if err := network.DeleteCookies(ctx, sess, p.Filter.Name, p.Filter.Domain, p.Filter.Path); err != nil {
		return nil, NewError(ErrorCodeUnknownError, err.Error())
	}
	return map[string]interface{}{}, nil
}
