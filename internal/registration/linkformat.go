package registration

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// rootResourceType marks the link announcing an alternate LWM2M root path.
const rootResourceType = "oma.lwm2m"

// Link format limits.
const (
	maxPayloadSize = 16 * 1024
	maxObjectLinks = 1024
)

// ParseObjectLinks parses a CoRE Link Format (RFC 6690) registration payload
// into the announced root path and the ordered object-link list.
//
// Only the shape of each link is checked: the path must be one to three
// numeric segments (object, instance, resource) under the root path. Links to
// individual resources are folded into their instance's ResourceIDs.
// Duplicate links are ignored. An empty payload yields root "/" and no links.
//
// Example:
//
//	</>;rt="oma.lwm2m",</1/0>,</3/0>,</3303>;ver=1.1
func ParseObjectLinks(payload []byte) (string, []ObjectLink, error) {
	if len(payload) > maxPayloadSize {
		return "", nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidPayload, maxPayloadSize)
	}
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return "/", nil, nil
	}

	type rawLink struct {
		target string
		attrs  map[string]string
	}

	parts := splitUnquoted(text, ',')
	if len(parts) > maxObjectLinks {
		return "", nil, fmt.Errorf("%w: more than %d links", ErrInvalidPayload, maxObjectLinks)
	}

	root := "/"
	raws := make([]rawLink, 0, len(parts))
	for _, part := range parts {
		target, attrs, err := parseLinkValue(part)
		if err != nil {
			return "", nil, err
		}
		if attrs["rt"] == rootResourceType {
			root = normalisePath(target)
			continue
		}
		raws = append(raws, rawLink{target: target, attrs: attrs})
	}

	links := make([]ObjectLink, 0, len(raws))
	index := make(map[string]int, len(raws))
	for _, raw := range raws {
		segments, ok := relativeSegments(raw.target, root)
		if !ok {
			return "", nil, fmt.Errorf("%w: link %q is not an object path under root %q", ErrInvalidPayload, raw.target, root)
		}
		if len(segments) == 0 {
			// Root link without rt, e.g. </>;ct=11543.
			continue
		}

		ids := make([]uint16, len(segments))
		for i, seg := range segments {
			id, err := strconv.ParseUint(seg, 10, 16)
			if err != nil {
				return "", nil, fmt.Errorf("%w: non-numeric segment %q in %q", ErrInvalidPayload, seg, raw.target)
			}
			ids[i] = uint16(id)
		}

		key := strings.Join(segments[:min(len(segments), 2)], "/")
		pos, seen := index[key]
		if !seen {
			link := ObjectLink{ObjectID: ids[0], Version: raw.attrs["ver"]}
			if len(ids) > 1 {
				iid := ids[1]
				link.InstanceID = &iid
			}
			links = append(links, link)
			pos = len(links) - 1
			index[key] = pos
		}
		if len(ids) == 3 && !slices.Contains(links[pos].ResourceIDs, ids[2]) {
			links[pos].ResourceIDs = append(links[pos].ResourceIDs, ids[2])
		}
	}

	return root, links, nil
}

// parseLinkValue splits `<target>;attr=value;...` into target and attributes.
func parseLinkValue(s string) (string, map[string]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", nil, fmt.Errorf("%w: link %q does not start with '<'", ErrInvalidPayload, s)
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", nil, fmt.Errorf("%w: unterminated link %q", ErrInvalidPayload, s)
	}
	target := s[1:end]
	if target == "" || !strings.HasPrefix(target, "/") {
		return "", nil, fmt.Errorf("%w: link target %q must be an absolute path", ErrInvalidPayload, target)
	}

	attrs := make(map[string]string)
	rest := strings.TrimSpace(s[end+1:])
	if rest == "" {
		return target, attrs, nil
	}
	if rest[0] != ';' {
		return "", nil, fmt.Errorf("%w: unexpected %q after link target", ErrInvalidPayload, rest)
	}
	for _, param := range splitUnquoted(rest[1:], ';') {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		name, value, _ := strings.Cut(param, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return "", nil, fmt.Errorf("%w: empty attribute name in %q", ErrInvalidPayload, s)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		attrs[name] = value
	}
	return target, attrs, nil
}

// splitUnquoted splits s on sep, ignoring separators inside double quotes.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// normalisePath returns p with a single leading slash and no trailing slash.
func normalisePath(p string) string {
	p = strings.Trim(p, "/")
	return "/" + p
}

// relativeSegments strips root from target and returns the remaining
// non-empty path segments.
func relativeSegments(target, root string) ([]string, bool) {
	target = normalisePath(target)
	if root != "/" {
		if target != root && !strings.HasPrefix(target, root+"/") {
			return nil, false
		}
		target = strings.TrimPrefix(target, root)
	}
	trimmed := strings.Trim(target, "/")
	if trimmed == "" {
		return nil, true
	}
	segments := strings.Split(trimmed, "/")
	if len(segments) > 3 {
		return nil, false
	}
	return segments, true
}
